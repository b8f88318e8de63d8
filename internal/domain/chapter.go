package domain

// ChapterContent is the content service's authoritative representation of a
// chapter, returned on load and produced again after every applied save.
// Version is a monotonically increasing integer owned by the server.
type ChapterContent struct {
	Content string `json:"content"`
	Version int64  `json:"version"`
}

type OpenSessionRequest struct {
	ChapterID string `json:"chapter_id" validate:"required"`
}

// EditRequest carries one content-change event. Empty content is valid: the
// user may have deleted everything intentionally.
type EditRequest struct {
	Content string `json:"content"`
}

type SessionResponse struct {
	SessionID      string `json:"session_id"`
	ChapterID      string `json:"chapter_id"`
	Content        string `json:"content"`
	Version        int64  `json:"version"`
	WordCount      int    `json:"word_count"`
	RecoveredDraft bool   `json:"recovered_draft"`
}

type StatusResponse struct {
	SessionID string     `json:"session_id"`
	ChapterID string     `json:"chapter_id"`
	Status    SaveStatus `json:"status"`
	Label     string     `json:"label"`
}
