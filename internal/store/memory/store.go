// Package memory provides an in-memory document store for development.
package memory

import (
	"context"
	"sync"

	"github.com/crawlchat/crawlchat/internal/crawl"
)

// Store implements crawl.DocumentStore in memory.
type Store struct {
	mu   sync.RWMutex
	docs []crawl.Document
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Insert appends one document.
func (s *Store) Insert(_ context.Context, doc crawl.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

// All returns the documents in insertion order.
func (s *Store) All(_ context.Context) ([]crawl.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

// Clear removes all documents.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}
