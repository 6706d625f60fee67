// Package cache defines the disk-backed response cache used by the caching
// client. Every URL maps to one file, <dir>/<sha1(url)>.cache, holding a
// self-describing JSON entry (content, request options, named transfer
// statistics, errno, errmsg). The Store owns all filesystem mutation and writes
// through temp file + rename; the Policy decides whether a stored entry may be
// served and whether a fresh response may be persisted.
package cache
