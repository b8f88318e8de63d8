package draftstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"draftcrane-agent/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is the default durable draft store. One database file per
// device, WAL mode so status reads never block a draft write.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the draft database at the given path. Safe to
// call multiple times; schema creation is idempotent.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// SQLite allows a single writer; keep one connection to avoid
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveDraft(ctx context.Context, entry *domain.DraftEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (chapter_id, content, updated_at, version, content_hash, word_count, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chapter_id) DO UPDATE SET
			content      = excluded.content,
			updated_at   = excluded.updated_at,
			version      = excluded.version,
			content_hash = excluded.content_hash,
			word_count   = excluded.word_count,
			synced       = excluded.synced`,
		entry.ChapterID,
		entry.Content,
		entry.UpdatedAt.UnixNano(),
		entry.Version,
		entry.ContentHash,
		entry.WordCount,
		boolToInt(entry.Synced),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save draft: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LoadDraft(ctx context.Context, chapterID string) (*domain.DraftEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chapter_id, content, updated_at, version, content_hash, word_count, synced
		FROM drafts WHERE chapter_id = ?`, chapterID)

	var entry domain.DraftEntry
	var updatedAt int64
	var synced int
	err := row.Scan(&entry.ChapterID, &entry.Content, &updatedAt, &entry.Version,
		&entry.ContentHash, &entry.WordCount, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load draft: %v", ErrUnavailable, err)
	}

	entry.UpdatedAt = time.Unix(0, updatedAt)
	entry.Synced = synced != 0
	return &entry, nil
}

func (s *SQLiteStore) DeleteDraft(ctx context.Context, chapterID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE chapter_id = ?`, chapterID); err != nil {
		return fmt.Errorf("%w: failed to delete draft: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts`); err != nil {
		return fmt.Errorf("%w: failed to clear drafts: %v", ErrUnavailable, err)
	}
	return nil
}

// ListDrafts returns every stored draft, newest first. Used by the CLI
// inspection commands, not by the autosave path.
func (s *SQLiteStore) ListDrafts(ctx context.Context) ([]*domain.DraftEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chapter_id, content, updated_at, version, content_hash, word_count, synced
		FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list drafts: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []*domain.DraftEntry
	for rows.Next() {
		var entry domain.DraftEntry
		var updatedAt int64
		var synced int
		if err := rows.Scan(&entry.ChapterID, &entry.Content, &updatedAt, &entry.Version,
			&entry.ContentHash, &entry.WordCount, &synced); err != nil {
			return nil, err
		}
		entry.UpdatedAt = time.Unix(0, updatedAt)
		entry.Synced = synced != 0
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
