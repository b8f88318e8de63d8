package draftstore

import (
	"context"
	"errors"

	"draftcrane-agent/internal/domain"
)

// ErrUnavailable signals that the underlying storage cannot serve requests
// (missing file permissions, exhausted quota, unreachable local database).
// Callers treat it as non-fatal and degrade to memory-only drafts.
var ErrUnavailable = errors.New("draft storage unavailable")

// Store is the local draft cache, keyed by chapter ID. It is a resilience
// buffer: the most recent edit survives here even when the content service
// is unreachable. All operations work fully offline.
//
// SaveDraft is idempotent and last-write-wins per key. LoadDraft returns
// (nil, nil) for an absent key.
type Store interface {
	SaveDraft(ctx context.Context, entry *domain.DraftEntry) error
	LoadDraft(ctx context.Context, chapterID string) (*domain.DraftEntry, error)
	DeleteDraft(ctx context.Context, chapterID string) error
	ClearAll(ctx context.Context) error
	Close() error
}
