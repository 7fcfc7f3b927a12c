package store

import (
	"context"
	"sync"

	dd "dice-drop-bot/internal/domain/dice"
)

// MemoryStore keeps the document in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	doc     *dd.Document
	saveErr error
	saves   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*dd.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		s.doc = dd.NewDocument()
	}
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *dd.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SetSaveErr makes every following Save fail with err until reset with nil.
func (s *MemoryStore) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
