package docstore

import (
	"context"
	"sync"

	"tradegate/pkg/platform/sentinel"
)

// InMemoryStore keeps documents in process memory. It favours clarity over
// performance and is the default backend for development and tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *InMemoryStore) Get(_ context.Context, collection, key string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.collections[collection][key]; ok {
		return doc.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Set(_ context.Context, collection, key string, fields Document, opts SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		s.collections[collection] = docs
	}
	docs[key] = apply(docs[key], fields, opts)
	return nil
}

// Len returns the number of documents in collection.
func (s *InMemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
