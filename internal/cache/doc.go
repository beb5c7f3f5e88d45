// Package cache defines the disk-backed store that maps a request key onto
// CacheDir/<sha1>.<ext> files. Lookup answers freshness queries (existence
// only, or existence plus TTL) and hands back a streaming reader for hits;
// WithWriteLock exposes a non-blocking single-writer slot per key so exactly
// one origin transfer may truncate and rewrite an entry at a time. Locks are
// scoped to one key: requests for different keys never wait on each other.
package cache
