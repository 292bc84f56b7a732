package featurecache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It counts calls so tests can assert
// which operations a component performed.
type MemoryStore struct {
	mu        sync.Mutex
	artifacts map[string]*Artifact

	Gets          int
	Puts          int
	Invalidations int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]*Artifact)}
}

func (s *MemoryStore) Get(_ context.Context, source string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	artifact, ok := s.artifacts[Key(source)]
	if !ok {
		return nil, ErrCacheMiss
	}
	copied := *artifact
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, artifact *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Puts++
	copied := *artifact
	copied.Source = canonical(artifact.Source)
	s.artifacts[Key(artifact.Source)] = &copied
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Invalidations++
	delete(s.artifacts, Key(source))
	return nil
}

func (s *MemoryStore) Clear(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.artifacts)
	s.artifacts = make(map[string]*Artifact)
	return n, nil
}

func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Backend: "memory", Entries: len(s.artifacts)}, nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}
