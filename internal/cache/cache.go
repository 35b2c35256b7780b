// Package cache provides the recommendation cache: a key-value store with
// TTL semantics and prefix invalidation, keyed by a deterministic fingerprint
// of (user, normalized context).
//
// Cache failures are never surfaced to callers: a failed read is a miss and a
// failed write is dropped, both logged. The production implementation is
// Redis-backed; tests run it against miniredis.
package cache

import (
	"context"
	"time"
)

// Cache is the recommendation cache contract. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the raw value stored under key, or ok=false on a miss or
	// any backend failure.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores value under key with the given TTL. Backend failures are
	// logged and dropped.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// DeleteByPrefix removes every key starting with prefix. Returns the
	// number of keys removed; backend failures are logged and reported as 0.
	DeleteByPrefix(ctx context.Context, prefix string) int

	// Ping verifies connectivity for readiness checks.
	Ping(ctx context.Context) error
}
