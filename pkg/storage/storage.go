// Package storage defines the blob store boundary the access pipeline
// depends on. Implementations live in subpackages; the core only ever sees
// opaque keys and bytes.
package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound signals that no blob exists under the requested key.
var ErrBlobNotFound = errors.New("storage: blob not found")

// BlobStore stores and retrieves opaque byte blobs by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
