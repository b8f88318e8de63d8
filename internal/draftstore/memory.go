package draftstore

import (
	"context"
	"sync"

	"draftcrane-agent/internal/domain"
)

// MemoryStore keeps drafts in process memory only. It is the degrade target
// when durable storage is unavailable: autosave keeps working, but drafts
// survive only until the agent exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.DraftEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]domain.DraftEntry),
	}
}

func (s *MemoryStore) SaveDraft(_ context.Context, entry *domain.DraftEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ChapterID] = *entry
	return nil
}

func (s *MemoryStore) LoadDraft(_ context.Context, chapterID string) (*domain.DraftEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[chapterID]; ok {
		copied := entry
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) DeleteDraft(_ context.Context, chapterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, chapterID)
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.DraftEntry)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
