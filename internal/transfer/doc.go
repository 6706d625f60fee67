// Package transfer implements the blocking HTTP primitive that the caching
// client delegates to. A Transferer performs exactly one request for a URL and
// an option set and reports the body, a fixed table of transfer statistics
// (Info keyed by Metric), and a numeric error code plus message. Network and
// protocol failures never surface as Go errors; they are folded into the
// Result so callers can persist and replay them like any other response.
package transfer
