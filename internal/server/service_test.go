package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-fetch/internal/cache"
	"github.com/any-hub/any-fetch/internal/transfer"
)

func TestCacheServiceFetchesThroughCache(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "payload")
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.Client())

	first, err := svc.Fetch(context.Background(), upstream.URL+"/x")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if first.Cached || string(first.Body) != "payload" || first.Status != "200" {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.ContentType != "text/plain" {
		t.Fatalf("unexpected content type %q", first.ContentType)
	}

	second, err := svc.Fetch(context.Background(), upstream.URL+"/x")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !second.Cached || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("second fetch should be served from cache, hits=%d", hits)
	}

	removed, err := svc.Clear(context.Background(), upstream.URL+"/x")
	if err != nil || removed != 1 {
		t.Fatalf("clear: %d %v", removed, err)
	}
}

func TestCacheServiceCollapsesConcurrentFetches(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = io.WriteString(w, "slow")
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.Client())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Fetch(context.Background(), upstream.URL+"/slow"); err != nil {
				t.Errorf("fetch: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single upstream hit, got %d", got)
	}
}

func TestCacheServiceSharesStoreAcrossRequests(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "payload")
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.Client())
	target := upstream.URL + "/shared"
	if got := svc.newClient(target).CacheDirectory(); got != svc.store.Dir() {
		t.Fatalf("client should use the shared store, dir=%s", got)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Fetch(context.Background(), target); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Clear(context.Background(), target); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent fetch/clear failed: %v", err)
	}
}

func TestNewCacheServiceRejectsBadPatterns(t *testing.T) {
	if _, err := NewCacheService(ServiceOptions{CacheableStatus: []string{"(("}}); err == nil {
		t.Fatalf("invalid patterns should be rejected")
	}
}

func newTestService(t *testing.T, httpClient *http.Client) *CacheService {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc, err := NewCacheService(ServiceOptions{
		Directory:          t.TempDir(),
		Duration:           cache.NoExpiry,
		RetryOnServerError: true,
		RequestOptions:     transfer.Options{transfer.OptMethod: "GET"},
		Transfer:           transfer.NewHTTPTransfer(httpClient, logger),
		Logger:             logger,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
