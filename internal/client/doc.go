// Package client provides CachedClient, the orchestrator that fronts a
// transfer.Transferer with the disk cache. Each Execute call performs at most
// one cache read, at most one network transfer, and at most one cache write,
// sequentially on the calling goroutine. A CachedClient carries per-request
// state and is not safe for concurrent use; create one per goroutine.
package client
