// Package cache implements the pipeline's TTL key-value store contract
// (spec.md §4.7): get/set/del against a typically-remote store, where
// every failure degrades silently rather than propagating. A
// distinguished sentinel value represents a cached negative lookup so
// callers can tell "cached miss" apart from "not yet looked up".
package cache

import (
	"context"
	"time"
)

// MissSentinel is stored in place of a value to record a negative cache
// entry (e.g. "this postal code does not resolve"). It is never equal to
// a legitimate serialized payload because it uses a reserved prefix.
const MissSentinel = "\x00bd-miss\x00"

// IsMiss reports whether a value retrieved from the cache represents a
// cached negative result.
func IsMiss(v string, ok bool) bool {
	return ok && v == MissSentinel
}

// Cache is the pipeline-wide TTL key-value store contract. Every method
// must be safe to call concurrently. Implementations MUST NOT return an
// error from Get/Set/Del for transport-level failures — those degrade to
// (empty, false) / silent no-op, per spec.md §4.7 and §7 "Cache failure".
type Cache interface {
	// Get returns the stored value and true, or ("", false) on miss or
	// on any underlying failure.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key with the given TTL. Failures are
	// swallowed; callers cannot distinguish a dropped write from a
	// successful one, by design.
	Set(ctx context.Context, key string, value string, ttl time.Duration)

	// Del removes key. Failures are swallowed.
	Del(ctx context.Context, key string)
}
