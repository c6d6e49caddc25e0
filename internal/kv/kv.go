// Package kv defines the narrow key-value port every persistence component
// depends on. The ephemeral scope is backed by MemoryStore, the persistent
// scope by RedisStore or PostgresStore depending on configuration.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is the storage surface shared by sessions, ratings and the cache.
// Implementations must treat values as opaque bytes.
type Store interface {
	// Get returns the value under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
