package domain

import "time"

// DraftEntry is the local draft store record for one chapter. At most one
// entry exists per ChapterID; a save with the same key replaces the prior
// entry. Version is a cached copy of the last known server version and is
// advisory only.
type DraftEntry struct {
	ChapterID   string    `json:"chapter_id"`
	Content     string    `json:"content"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
	ContentHash string    `json:"content_hash"`
	WordCount   int       `json:"word_count"`
	Synced      bool      `json:"synced"`
}
