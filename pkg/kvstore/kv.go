package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("key not found")

// KV is the durable key-value index the services persist their records in.
// Every Put and Delete touches exactly one key and is atomic for that key.
// Implementations are safe for concurrent use but do not serialize
// read-modify-write sequences made of separate calls.
type KV interface {
	// Get returns the value stored at key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying handle
	Close() error
}
