// Package store persists opaque blobs by key. The kernel keeps its whole
// colony state under a single key; the store knows nothing about its shape.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a key/value store for serialized state.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the backend named by driver.
func Open(driver, path string) (BlobStore, error) {
	switch driver {
	case "sqlite":
		return NewLocalStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
