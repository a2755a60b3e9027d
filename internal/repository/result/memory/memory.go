package memory

import (
	"context"
	"sync"
	"time"

	"medtech-planner/internal/domain"
	"medtech-planner/internal/repository/result"

	"github.com/google/uuid"
)

// Store keeps processed images in process memory. Entries live until
// Delete is called.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]domain.Blob
}

func NewStore() *Store {
	return &Store{
		blobs: make(map[string]domain.Blob),
	}
}

func (s *Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", result.ErrEmptyBlob
	}

	key := uuid.New().String()
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.blobs[key] = domain.Blob{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(buf)),
		Data:        buf,
		CreatedAt:   time.Now(),
	}
	s.mu.Unlock()

	return key, nil
}

func (s *Store) Get(ctx context.Context, key string) (*domain.Blob, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, result.ErrBlobNotFound
	}
	return &blob, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return result.ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
