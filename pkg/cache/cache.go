// Package cache provides byte-oriented caches with per-entry expiration.
//
// The plugin uses it for Humble pages that never change once published,
// such as the content of past Choice months. The library cache itself is
// not stored here: it is handed to the launcher as an opaque blob.
//
// Implementations:
//   - [FileCache]: one JSON envelope per key under a directory
//   - [NullCache]: never stores anything (used with --no-cache)
//
// Use [Scoped] to prefix keys per data source:
//
//	choices := cache.Scoped(fc, "choice:")
//	choices.Set(ctx, "may-2020", data, 30*24*time.Hour)
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values by key.
type Cache interface {
	// Get returns the value for key. The boolean is false on a miss or
	// when the entry has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// scoped prefixes every key before delegating.
type scoped struct {
	inner  Cache
	prefix string
}

// Scoped returns a view of c that prefixes all keys with prefix.
// Scopes can be nested; prefixes concatenate.
func Scoped(c Cache, prefix string) Cache {
	if s, ok := c.(*scoped); ok {
		return &scoped{inner: s.inner, prefix: s.prefix + prefix}
	}
	return &scoped{inner: c, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Close() error { return s.inner.Close() }

// NullCache never stores anything. Every Get is a miss.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
