// Package cache provides the TTL-bounded last-good-response store keyed by
// token address.
//
// Get treats entries older than the TTL as absent. GetStale ignores the TTL
// and is used only to serve the last known value after an upstream failure.
package cache

import (
	"context"
	"time"
)

// Default configuration values.
const (
	DefaultTTL      = 5 * time.Second
	DefaultCapacity = 100
)

// Entry is a cached value together with its write time.
type Entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// Age returns how long ago the entry was written relative to now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Cache is safe for concurrent use. Concurrent writers to the same key are
// last-writer-wins.
type Cache[T any] interface {
	// Get returns the value when it was written less than TTL ago.
	Get(ctx context.Context, key string) (T, bool)

	// GetStale returns the most recent entry for key regardless of age.
	GetStale(ctx context.Context, key string) (Entry[T], bool)

	// Put stores value under key and evicts the oldest-written entries
	// beyond capacity.
	Put(ctx context.Context, key string, value T)

	// Len returns the number of stored entries.
	Len(ctx context.Context) int
}

// Options configures cache backends.
type Options struct {
	TTL      time.Duration
	Capacity int
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
