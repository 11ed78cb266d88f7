package scratch

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the key is absent or its TTL elapsed.
	ErrNotFound = errors.New("cache entry not found")
)

// Cache is a best-effort TTL scratch store. Like the durable key-value
// store, it may be unavailable; callers degrade to "no cached value".
type Cache interface {
	// GetCache returns the value or ErrNotFound once the TTL has elapsed.
	GetCache(ctx context.Context, key string) ([]byte, error)

	// SetCache stores the value for ttl. A non-positive ttl removes the key.
	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// RemoveCache deletes the key. Removing an absent key is not an error.
	RemoveCache(ctx context.Context, key string) error
}
