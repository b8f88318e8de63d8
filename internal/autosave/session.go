package autosave

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"draftcrane-agent/internal/diag"
	"draftcrane-agent/internal/domain"
	"draftcrane-agent/internal/draftstore"
	"draftcrane-agent/internal/remote"
	"draftcrane-agent/internal/status"
	"draftcrane-agent/pkg/hash"
	"draftcrane-agent/pkg/words"
)

// flushTimeout bounds the final best-effort save when a session closes.
const flushTimeout = 2 * time.Second

// Session is the autosave engine for one open chapter. It owns the debounce
// scheduler, the baseline version token, the retry loop, and the status
// projector for that chapter. Edits are persisted locally before any remote
// save is issued; the content service sees at most one in-flight save per
// session at a time.
type Session struct {
	ID        string
	ChapterID string

	client    remote.ChapterClient
	drafts    draftstore.Store
	projector *status.Projector
	retry     RetryPolicy
	errs      *diag.Ring
	sched     *Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	content string
	version int64
	closed  bool
}

func newSession(
	chapterID string,
	client remote.ChapterClient,
	drafts draftstore.Store,
	errs *diag.Ring,
	debounce time.Duration,
	retry RetryPolicy,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        uuid.New().String(),
		ChapterID: chapterID,
		client:    client,
		drafts:    drafts,
		projector: status.NewProjector(),
		retry:     retry.normalized(),
		errs:      errs,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.sched = NewScheduler(debounce, s.performSave)
	return s
}

// activate seeds the session: the server copy establishes the baseline
// version, and an unsynced local draft at that baseline (or newer) is
// recovered in place of the server content.
func (s *Session) activate(ctx context.Context) (*domain.SessionResponse, error) {
	loaded, err := s.client.Load(ctx, s.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chapter %s: %w", s.ChapterID, err)
	}

	content := loaded.Content
	recovered := false

	draft, draftErr := s.drafts.LoadDraft(ctx, s.ChapterID)
	if draftErr != nil {
		s.errs.Push("draftstore", draftErr)
	} else if draft != nil && !draft.Synced && draft.Version >= loaded.Version {
		content = draft.Content
		recovered = true
	}

	s.mu.Lock()
	s.content = content
	s.version = loaded.Version
	s.mu.Unlock()

	if recovered {
		// The recovered edit never reached the server; put it back on the
		// normal save schedule.
		s.sched.Touch()
	}

	return &domain.SessionResponse{
		SessionID:      s.ID,
		ChapterID:      s.ChapterID,
		Content:        content,
		Version:        loaded.Version,
		WordCount:      words.Count(content),
		RecoveredDraft: recovered,
	}, nil
}

// Edit records a content change: the draft is persisted locally right away,
// then the remote save is left to the debounce schedule. A change arriving
// after a terminal error re-arms the schedule like any other change.
func (s *Session) Edit(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session %s is closed", s.ID)
	}
	s.content = content
	version := s.version
	s.mu.Unlock()

	if err := s.drafts.SaveDraft(ctx, &domain.DraftEntry{
		ChapterID:   s.ChapterID,
		Content:     content,
		UpdatedAt:   time.Now(),
		Version:     version,
		ContentHash: hash.Content(content),
		WordCount:   words.Count(content),
		Synced:      false,
	}); err != nil {
		// Local persistence failures are absorbed; the remote save is still
		// the durable path.
		s.errs.Push("draftstore", err)
		log.Printf("failed to persist local draft for chapter %s: %v", s.ChapterID, err)
	}

	s.sched.Touch()
	return nil
}

// Retry is the explicit user affordance after a terminal error. It resets
// the attempt budget and dispatches immediately with the current content.
// A tap that races a successful save is ignored: there is nothing left to
// resend once the status is no longer terminal.
func (s *Session) Retry() {
	if !s.projector.Snapshot().Terminal() {
		return
	}
	s.sched.FireNow()
}

// Status returns the current save status snapshot.
func (s *Session) Status() domain.SaveStatus {
	return s.projector.Snapshot()
}

// Subscribe registers a listener for status transitions.
func (s *Session) Subscribe(fn func(domain.SaveStatus)) func() {
	return s.projector.Subscribe(fn)
}

// Close shuts the session down: the debounce timer and any scheduled retry
// are cancelled, one last best-effort flush runs if an edit was still owed a
// save, and any save still in flight has its result discarded.
func (s *Session) Close() {
	owed := s.sched.StopAndDrain()
	if owed {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		s.flushOnce(ctx)
		cancel()
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// performSave is the scheduler's dispatch: one logical save, retried on
// transient failure per the policy. Content and version are re-read at every
// attempt so a retry always carries the latest editor state.
func (s *Session) performSave() {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		content := s.content
		version := s.version
		s.mu.Unlock()

		s.setStatus(domain.Saving())

		newVersion, err := s.client.Save(s.ctx, s.ChapterID, content, version)
		switch {
		case err == nil:
			s.applied(content, newVersion)
			return

		case remote.IsConflict(err):
			s.errs.Push("remote", err)
			s.setStatus(domain.SaveError(
				"This chapter was changed somewhere else. Reload to pick up the latest version.", false))
			return

		case remote.IsValidation(err):
			s.errs.Push("remote", err)
			s.setStatus(domain.SaveError(fmt.Sprintf("Save rejected: %v", err), false))
			return

		case remote.IsTransient(err):
			s.errs.Push("remote", err)
			if s.retry.Exhausted(attempt) {
				s.setStatus(domain.SaveError("Save failed. Tap to retry.", true))
				return
			}
			s.setStatus(domain.SaveError(
				fmt.Sprintf("Save failed, retrying (%d of %d)", attempt, s.retry.MaxAttempts), true))
			if !sleepCtx(s.ctx, s.retry.Delay(attempt)) {
				return
			}

		default:
			s.errs.Push("remote", err)
			s.setStatus(domain.SaveError("Save failed. Tap to retry.", true))
			return
		}
	}
}

// flushOnce is the shutdown path: a single attempt, no retries, failures
// only logged. The draft store already holds the edit, so a miss here loses
// nothing durable.
func (s *Session) flushOnce(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	content := s.content
	version := s.version
	s.mu.Unlock()

	newVersion, err := s.client.Save(ctx, s.ChapterID, content, version)
	if err != nil {
		s.errs.Push("remote", err)
		log.Printf("final flush for chapter %s failed: %v", s.ChapterID, err)
		return
	}
	s.applied(content, newVersion)
}

// applied adopts the server's new version as the baseline and rewrites the
// draft entry as synced, so a reload cannot resurrect stale content.
func (s *Session) applied(content string, newVersion int64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.version = newVersion
	s.mu.Unlock()

	if err := s.drafts.SaveDraft(s.ctx, &domain.DraftEntry{
		ChapterID:   s.ChapterID,
		Content:     content,
		UpdatedAt:   time.Now(),
		Version:     newVersion,
		ContentHash: hash.Content(content),
		WordCount:   words.Count(content),
		Synced:      true,
	}); err != nil {
		s.errs.Push("draftstore", err)
	}

	s.setStatus(domain.Saved(time.Now()))
}

// setStatus drops transitions for sessions that have already closed, so a
// response that raced shutdown cannot repaint a dead indicator.
func (s *Session) setStatus(st domain.SaveStatus) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.projector.Set(st)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
