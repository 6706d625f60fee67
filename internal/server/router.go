package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-fetch/internal/cache"
	"github.com/any-hub/any-fetch/internal/client"
	"github.com/any-hub/any-fetch/internal/logging"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Fetcher    Fetcher
	ListenPort int
	Version    string
}

const contextKeyRequestID = "_anyfetch_request_id"

// NewApp builds a Fiber application exposing the cache endpoints with
// request-ID middleware and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &handlers{fetcher: opts.Fetcher, logger: opts.Logger}
	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": opts.Version})
	})
	app.Get("/fetch", h.fetch)
	app.Delete("/cache", h.clear)

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID 并回写响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

type handlers struct {
	fetcher Fetcher
	logger  *logrus.Logger
}

func (h *handlers) fetch(c fiber.Ctx) error {
	started := time.Now()
	target := c.Query("url")
	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
	}

	result, err := h.fetcher.Fetch(c.Context(), target)
	fields := logging.FetchFields(target, cache.DeriveKey(target), result != nil && result.Cached)
	fields["action"] = "fetch"
	fields["request_id"] = RequestID(c)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("fetch_failed")
		status := fiber.StatusInternalServerError
		if client.IsConfigurationError(err) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	fields["status"] = result.Status
	c.Set("X-Any-Fetch-Cache-Hit", strconv.FormatBool(result.Cached))
	if result.Errno != 0 {
		fields["errno"] = result.Errno
		h.logger.WithFields(fields).Warn("fetch_upstream_failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "upstream_failed",
			"errno":   result.Errno,
			"message": result.Error,
		})
	}

	h.logger.WithFields(fields).Info("fetch_complete")
	c.Set("X-Any-Fetch-Status", result.Status)
	if result.ContentType != "" {
		c.Set(fiber.HeaderContentType, result.ContentType)
	}
	status, convErr := strconv.Atoi(result.Status)
	if convErr != nil || status <= 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).Send(result.Body)
}

func (h *handlers) clear(c fiber.Ctx) error {
	var (
		removed int
		err     error
	)
	if target := c.Query("url"); target != "" {
		removed, err = h.fetcher.Clear(c.Context(), target)
	} else {
		removed, err = h.fetcher.Clear(c.Context())
	}

	fields := logrus.Fields{
		"action":     "cache_clear",
		"request_id": RequestID(c),
		"removed":    removed,
	}
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("cache_clear_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   err.Error(),
			"removed": removed,
		})
	}
	h.logger.WithFields(fields).Info("cache_clear_complete")
	return c.JSON(fiber.Map{"removed": removed})
}
