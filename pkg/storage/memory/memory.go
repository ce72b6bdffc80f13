// Package memory provides an in-memory BlobStore used by tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/veilpost/veilpost-backend/pkg/storage"
)

// Store is a thread-safe in-memory blob store.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{blobs: map[string][]byte{}}
}

// Put stores a copy of data under key.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the blob stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the blob stored under key, if any.
func (s *Store) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
}
