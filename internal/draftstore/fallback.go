package draftstore

import (
	"context"
	"errors"
	"log"
	"sync"

	"draftcrane-agent/internal/domain"
)

// Fallback wraps a durable store and degrades to an in-memory store for the
// rest of the process lifetime when the durable store reports ErrUnavailable.
// The failure is absorbed: editing continues, the durability guarantee
// silently weakens to "until the agent exits".
type Fallback struct {
	mu       sync.Mutex
	primary  Store
	memory   *MemoryStore
	degraded bool
}

func NewFallback(primary Store) *Fallback {
	return &Fallback{
		primary: primary,
		memory:  NewMemoryStore(),
	}
}

// Degraded reports whether the durable store has been abandoned.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) SaveDraft(ctx context.Context, entry *domain.DraftEntry) error {
	if f.useMemory() {
		return f.memory.SaveDraft(ctx, entry)
	}
	if err := f.primary.SaveDraft(ctx, entry); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		f.degrade(err)
		return f.memory.SaveDraft(ctx, entry)
	}
	return nil
}

func (f *Fallback) LoadDraft(ctx context.Context, chapterID string) (*domain.DraftEntry, error) {
	if f.useMemory() {
		return f.memory.LoadDraft(ctx, chapterID)
	}
	entry, err := f.primary.LoadDraft(ctx, chapterID)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		f.degrade(err)
		return f.memory.LoadDraft(ctx, chapterID)
	}
	return entry, nil
}

func (f *Fallback) DeleteDraft(ctx context.Context, chapterID string) error {
	if f.useMemory() {
		return f.memory.DeleteDraft(ctx, chapterID)
	}
	if err := f.primary.DeleteDraft(ctx, chapterID); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		f.degrade(err)
		return f.memory.DeleteDraft(ctx, chapterID)
	}
	return nil
}

func (f *Fallback) ClearAll(ctx context.Context) error {
	if f.useMemory() {
		return f.memory.ClearAll(ctx)
	}
	if err := f.primary.ClearAll(ctx); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		f.degrade(err)
		return f.memory.ClearAll(ctx)
	}
	return nil
}

func (f *Fallback) Close() error {
	return f.primary.Close()
}

func (f *Fallback) useMemory() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) degrade(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return
	}
	f.degraded = true
	log.Printf("draft storage unavailable, degrading to memory-only drafts: %v", err)
}
