package draftstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"

	"draftcrane-agent/internal/domain"
)

// CouchStore keeps drafts in a CouchDB database. Intended for deployments
// that pair the editor with a local CouchDB replica; the autosave engine
// treats it exactly like any other draft store.
type CouchStore struct {
	client *kivik.Client
	dbName string
}

func NewCouchStore(client *kivik.Client, dbName string) *CouchStore {
	return &CouchStore{
		client: client,
		dbName: dbName,
	}
}

// EnsureCouchDB creates the database if it does not exist yet.
func EnsureCouchDB(ctx context.Context, client *kivik.Client, dbName string) error {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (s *CouchStore) SaveDraft(ctx context.Context, entry *domain.DraftEntry) error {
	db := s.client.DB(s.dbName)
	docID := draftDocID(entry.ChapterID)

	doc := map[string]interface{}{
		"type":         "draft",
		"chapter_id":   entry.ChapterID,
		"content":      entry.Content,
		"updated_at":   entry.UpdatedAt.Format(time.RFC3339Nano),
		"version":      entry.Version,
		"content_hash": entry.ContentHash,
		"word_count":   entry.WordCount,
		"synced":       entry.Synced,
	}

	var existing map[string]interface{}
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&existing); err == nil {
		doc["_rev"] = existing["_rev"]
	} else if kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("%w: failed to fetch draft for update: %v", ErrUnavailable, err)
	}

	if _, err := db.Put(ctx, docID, doc); err != nil {
		return fmt.Errorf("%w: failed to save draft: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *CouchStore) LoadDraft(ctx context.Context, chapterID string) (*domain.DraftEntry, error) {
	db := s.client.DB(s.dbName)

	var doc struct {
		ChapterID   string `json:"chapter_id"`
		Content     string `json:"content"`
		UpdatedAt   string `json:"updated_at"`
		Version     int64  `json:"version"`
		ContentHash string `json:"content_hash"`
		WordCount   int    `json:"word_count"`
		Synced      bool   `json:"synced"`
	}
	row := db.Get(ctx, draftDocID(chapterID))
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to load draft: %v", ErrUnavailable, err)
	}

	updatedAt, _ := time.Parse(time.RFC3339Nano, doc.UpdatedAt)
	return &domain.DraftEntry{
		ChapterID:   doc.ChapterID,
		Content:     doc.Content,
		UpdatedAt:   updatedAt,
		Version:     doc.Version,
		ContentHash: doc.ContentHash,
		WordCount:   doc.WordCount,
		Synced:      doc.Synced,
	}, nil
}

func (s *CouchStore) DeleteDraft(ctx context.Context, chapterID string) error {
	db := s.client.DB(s.dbName)
	docID := draftDocID(chapterID)

	var doc map[string]interface{}
	row := db.Get(ctx, docID)
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("%w: failed to fetch draft for delete: %v", ErrUnavailable, err)
	}

	rev, _ := doc["_rev"].(string)
	if _, err := db.Delete(ctx, docID, rev); err != nil {
		return fmt.Errorf("%w: failed to delete draft: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *CouchStore) ClearAll(ctx context.Context) error {
	db := s.client.DB(s.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": "draft",
		},
	}
	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: failed to list drafts: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc map[string]interface{}
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		id, _ := doc["_id"].(string)
		rev, _ := doc["_rev"].(string)
		if id == "" {
			continue
		}
		if _, err := db.Delete(ctx, id, rev); err != nil {
			return fmt.Errorf("%w: failed to clear drafts: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (s *CouchStore) Close() error {
	return s.client.Close()
}

func draftDocID(chapterID string) string {
	return fmt.Sprintf("draft:%s", chapterID)
}
