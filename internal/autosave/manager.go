package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"draftcrane-agent/internal/diag"
	"draftcrane-agent/internal/domain"
	"draftcrane-agent/internal/draftstore"
	"draftcrane-agent/internal/remote"
)

// Options are the tunable autosave policy knobs. All of them come from
// configuration; zero values fall back to the defaults.
type Options struct {
	Debounce time.Duration
	Retry    RetryPolicy
}

// Manager owns the active editing sessions, one per open chapter. Opening a
// chapter that already has a session replaces it: the old session is closed
// (flushing any owed edit) before the new one activates, so only one logical
// writer exists per chapter on this device.
type Manager struct {
	client remote.ChapterClient
	drafts draftstore.Store
	errs   *diag.Ring
	opts   Options

	mu        sync.Mutex
	sessions  map[string]*Session
	byChapter map[string]*Session
}

func NewManager(client remote.ChapterClient, drafts draftstore.Store, errs *diag.Ring, opts Options) *Manager {
	return &Manager{
		client:    client,
		drafts:    drafts,
		errs:      errs,
		opts:      opts,
		sessions:  make(map[string]*Session),
		byChapter: make(map[string]*Session),
	}
}

// Open starts an editing session for the chapter and returns the seeded
// content and baseline version.
func (m *Manager) Open(ctx context.Context, chapterID string) (*domain.SessionResponse, error) {
	m.mu.Lock()
	prev := m.byChapter[chapterID]
	if prev != nil {
		delete(m.sessions, prev.ID)
		delete(m.byChapter, chapterID)
	}
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	session := newSession(chapterID, m.client, m.drafts, m.errs, m.opts.Debounce, m.opts.Retry)
	resp, err := session.activate(ctx)
	if err != nil {
		session.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.byChapter[chapterID] = session
	m.mu.Unlock()

	return resp, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}
	return session, nil
}

// Close ends the session, flushing any owed edit.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		delete(m.byChapter, session.ChapterID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	session.Close()
	return nil
}

// CloseAll shuts every session down. Called on agent shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.byChapter = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
