package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/any-hub/any-fetch/internal/transfer"
)

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.com/data.bin")

	entry := NewEntry(transfer.Result{
		Body: []byte{0x00, 0x01, 0xfe, 0xff, '\n'},
		Info: transfer.Info{
			transfer.MetricHTTPCode:     200,
			transfer.MetricContentType:  "application/octet-stream",
			transfer.MetricTotalTime:    0.125,
			transfer.MetricFiletime:     int64(-1),
			transfer.MetricEffectiveURL: "https://example.com/data.bin",
		},
		Errno: 0,
		Error: "",
	}, transfer.Options{transfer.OptMethod: "GET"})

	if _, err := store.Put(context.Background(), key, entry); err != nil {
		t.Fatalf("put error: %v", err)
	}

	record, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if string(record.Entry.Content) != string(entry.Content) {
		t.Fatalf("cached payload mismatch: %v", record.Entry.Content)
	}
	if !reflect.DeepEqual(record.Entry.Infos, entry.Infos) {
		t.Fatalf("infos mismatch:\n got %#v\nwant %#v", record.Entry.Infos, entry.Infos)
	}
	if record.Entry.Errno != entry.Errno || record.Entry.Errmsg != entry.Errmsg {
		t.Fatalf("error fields mismatch: %d %q", record.Entry.Errno, record.Entry.Errmsg)
	}
	if !record.Entry.Options.Equal(entry.Options) {
		t.Fatalf("options mismatch: %v", record.Entry.Options)
	}
	if filepath.Base(record.FilePath) != key+FileExt {
		t.Fatalf("unexpected file name %s", record.FilePath)
	}
	if record.ModTime.IsZero() {
		t.Fatalf("modtime should be populated")
	}
}

func TestStorePersistsTransferFailures(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("http://unreachable.invalid/")
	entry := NewEntry(transfer.Result{
		Info:  transfer.Info{transfer.MetricHTTPCode: 0},
		Errno: transfer.ErrnoResolveHost,
		Error: "no such host",
	}, nil)

	if _, err := store.Put(context.Background(), key, entry); err != nil {
		t.Fatalf("put error: %v", err)
	}
	record, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if record.Entry.Errno != transfer.ErrnoResolveHost || record.Entry.Errmsg != "no such host" {
		t.Fatalf("unexpected error fields %d %q", record.Entry.Errno, record.Entry.Errmsg)
	}
	if record.Entry.Status() != "0" {
		t.Fatalf("expected status 0, got %q", record.Entry.Status())
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), DeriveKey("https://example.com/missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetCorrupt(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.com/corrupt")
	path := filepath.Join(store.Dir(), key+FileExt)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	_, err := store.Get(context.Background(), key)
	var corrupt *CorruptEntryError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptEntryError, got %v", err)
	}
}

func TestStoreGetUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	store := newTestStore(t)
	key := DeriveKey("https://example.com/locked")
	path := filepath.Join(store.Dir(), key+FileExt)
	if err := os.WriteFile(path, []byte("{}"), 0o000); err != nil {
		t.Fatalf("write error: %v", err)
	}

	_, err := store.Get(context.Background(), key)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestStoreRemove(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.com/remove")
	if _, err := store.Put(context.Background(), key, Entry{Content: []byte("data")}); err != nil {
		t.Fatalf("put error: %v", err)
	}

	removed, err := store.Remove(context.Background(), key)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	if _, err := store.Get(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}

	removed, err = store.Remove(context.Background(), key)
	if err != nil || removed {
		t.Fatalf("second remove should be a no-op, got %v %v", removed, err)
	}
}

func TestStoreSweepOnlyRemovesCacheFiles(t *testing.T) {
	store := newTestStore(t)
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if _, err := store.Put(context.Background(), DeriveKey(u), Entry{}); err != nil {
			t.Fatalf("put error: %v", err)
		}
	}
	keep := filepath.Join(store.Dir(), "notes.txt")
	if err := os.WriteFile(keep, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	removed, err := store.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removals, got %d", removed)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("non-cache file should survive sweep: %v", err)
	}

	removed, err = store.Sweep(context.Background())
	if err != nil || removed != 0 {
		t.Fatalf("empty sweep should return 0, got %d %v", removed, err)
	}
}

func TestStoreSweepLiteralDirectoryName(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "c[1]"))
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	if _, err := store.Put(context.Background(), DeriveKey("https://a.example"), Entry{}); err != nil {
		t.Fatalf("put error: %v", err)
	}
	subdir := filepath.Join(store.Dir(), "nested"+FileExt)
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	removed, err := store.Sweep(context.Background())
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removal, got %d %v", removed, err)
	}
	if _, err := os.Stat(subdir); err != nil {
		t.Fatalf("directories named *.cache should survive sweep: %v", err)
	}
}

func TestStoreEnsureRecreatesDirectory(t *testing.T) {
	store := newTestStore(t)
	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if err := store.Ensure(); err != nil {
		t.Fatalf("ensure error: %v", err)
	}
	if _, err := store.Put(context.Background(), DeriveKey("https://a.example"), Entry{}); err != nil {
		t.Fatalf("put after ensure: %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("https://example.com/dir")
	if err := os.MkdirAll(filepath.Join(store.Dir(), key+FileExt), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	if _, err := store.Get(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStoreRejectsPathKeys(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Put(context.Background(), "../escape", Entry{}); err == nil {
		t.Fatalf("expected error for key with separators")
	}
}

func TestNewStoreCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	info, err := os.Stat(store.Dir())
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist: %v", err)
	}
}

func TestNewStoreRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	_, err := NewStore(path)
	var dirErr *DirectoryError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected DirectoryError, got %v", err)
	}

	if _, err := NewStore(""); !errors.As(err, &dirErr) {
		t.Fatalf("expected DirectoryError for empty path, got %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	key := DeriveKey("http://x")
	if key != DeriveKey("http://x") {
		t.Fatalf("key must be deterministic")
	}
	if len(key) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(key))
	}
	if key == DeriveKey("http://y") {
		t.Fatalf("different urls should yield different keys")
	}
	if key != "158b48105e50a8dfe5ed540d034d055ef48ae3a8" {
		t.Fatalf("unexpected key %s", key)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
