package kv

import "context"

// Store is a minimal durable key-value contract. Values are opaque bytes;
// callers bring their own codec.
type Store interface {
	// GetItem returns the stored value or ErrNotFound.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores the value, replacing any previous one.
	SetItem(ctx context.Context, key string, value []byte) error

	// RemoveItem deletes the key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
}
