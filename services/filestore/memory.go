package filestore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core/assignment"
)

var errNoSuchRef = errors.New("filestore: no such ref")

// memoryStore holds documents in memory; tests only.
type memoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ assignment.FileStore = (*memoryStore)(nil)

func NewMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (s *memoryStore) Save(_ context.Context, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ref := uuid.NewString()
	s.files[ref] = b
	return ref, nil
}

func (s *memoryStore) Open(_ context.Context, ref string) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.files[ref]
	if !ok {
		return nil, 0, errNoSuchRef
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (s *memoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, ref)
	return nil
}
