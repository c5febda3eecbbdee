// Package memory is an in-process document store with the same contract as
// the Redis store. It backs unit tests and single-node development runs.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/lalabot/delivery-api/internal/store"
)

type Store struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewStore() *Store {
	return &Store{docs: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *Store) Set(_ context.Context, path string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[path] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, path)
	return nil
}

func (s *Store) List(_ context.Context, path string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	children := make(map[string][]byte)
	for key, val := range s.docs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		child := strings.TrimPrefix(key, prefix)
		if strings.Contains(child, "/") {
			continue
		}
		children[child] = append([]byte(nil), val...)
	}
	return children, nil
}

func (s *Store) CompareAndSwap(_ context.Context, path string, expected, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[path]
	if !ok {
		if expected != nil {
			return store.ErrCASMismatch
		}
	} else if expected == nil || !bytes.Equal(current, expected) {
		return store.ErrCASMismatch
	}

	s.docs[path] = append([]byte(nil), value...)
	return nil
}
