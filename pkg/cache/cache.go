// Package cache stores encoded snapshots so repeated scans of an unchanged
// configuration can start from the previous result.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one file per entry under a local directory (CLI default)
//   - [RedisCache]: a shared Redis instance
//   - [NullCache]: stores nothing
//
// Keys come from a [Keyer] so the scan options that shape a snapshot are
// part of its identity.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/overview/pkg/observability"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Fetch returns the bytes stored under key, or ErrCacheMiss. Hits and misses
// are reported to the cache hooks under backend.
func Fetch(ctx context.Context, c Cache, backend, key string) ([]byte, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, backend)
		return nil, ErrCacheMiss
	}
	observability.Cache().OnCacheHit(ctx, backend)
	return data, nil
}

// Store writes data under key and reports the write to the cache hooks.
func Store(ctx context.Context, c Cache, backend, key string, data []byte, ttl time.Duration) error {
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, backend, len(data))
	return nil
}
