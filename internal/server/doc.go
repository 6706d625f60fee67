// Package server hosts the optional Fiber HTTP front end started by
// `any-fetch -serve`. It exposes the caching client over HTTP: GET /fetch
// resolves a URL through the disk cache, DELETE /cache purges entries, and
// /-/healthz reports liveness. Every request gets an X-Request-ID and one
// structured log line; concurrent fetches of the same URL share one transfer.
package server
