package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftcrane-agent/internal/diag"
	"draftcrane-agent/internal/domain"
	"draftcrane-agent/internal/draftstore"
	"draftcrane-agent/internal/remote"
)

type saveCall struct {
	ChapterID   string
	Content     string
	BaseVersion int64
}

type saveResult struct {
	version int64
	err     error
}

// fakeClient scripts the content service. Save pops results in order and
// repeats the last one once the script runs out.
type fakeClient struct {
	mu      sync.Mutex
	loaded  domain.ChapterContent
	loadErr error
	results []saveResult
	calls   []saveCall
}

func (f *fakeClient) Load(context.Context, string) (domain.ChapterContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded, f.loadErr
}

func (f *fakeClient) Save(_ context.Context, chapterID, content string, baseVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, saveCall{ChapterID: chapterID, Content: content, BaseVersion: baseVersion})

	var res saveResult
	if len(f.results) > 0 {
		res = f.results[0]
		if len(f.results) > 1 {
			f.results = f.results[1:]
		}
	}
	return res.version, res.err
}

func (f *fakeClient) saveCalls() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saveCall(nil), f.calls...)
}

type fixture struct {
	client  *fakeClient
	drafts  *draftstore.MemoryStore
	manager *Manager
}

func newFixture(t *testing.T, client *fakeClient) *fixture {
	t.Helper()
	drafts := draftstore.NewMemoryStore()
	manager := NewManager(client, drafts, diag.NewRing(32), Options{
		Debounce: 20 * time.Millisecond,
		Retry:    RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	})
	t.Cleanup(manager.CloseAll)
	return &fixture{client: client, drafts: drafts, manager: manager}
}

func openSession(t *testing.T, f *fixture, chapterID string) *Session {
	t.Helper()
	resp, err := f.manager.Open(context.Background(), chapterID)
	require.NoError(t, err)
	session, err := f.manager.Get(resp.SessionID)
	require.NoError(t, err)
	return session
}

func waitForState(t *testing.T, s *Session, want domain.SaveState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status().State == want
	}, 2*time.Second, 2*time.Millisecond, "status never reached %s (now %s)", want, s.Status().State)
}

func TestSession_EditSavedWithBaselineVersion(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Content: "<p>Hi</p>", Version: 3},
		results: []saveResult{{version: 4}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "<p>Hi there</p>"))
	waitForState(t, s, domain.StateSaved)

	calls := client.saveCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ch1", calls[0].ChapterID)
	assert.Equal(t, "<p>Hi there</p>", calls[0].Content)
	assert.Equal(t, int64(3), calls[0].BaseVersion)

	// The draft entry now matches the synced state.
	draft, err := f.drafts.LoadDraft(context.Background(), "ch1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, int64(4), draft.Version)
	assert.True(t, draft.Synced)
	assert.Equal(t, "<p>Hi there</p>", draft.Content)
}

func TestSession_BurstOfEditsCoalescesToOneSave(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Content: "", Version: 1},
		results: []saveResult{{version: 2}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	ctx := context.Background()
	require.NoError(t, s.Edit(ctx, "a"))
	require.NoError(t, s.Edit(ctx, "ab"))
	require.NoError(t, s.Edit(ctx, "abc"))
	waitForState(t, s, domain.StateSaved)

	calls := client.saveCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0].Content, "the save must carry the last edit of the burst")
}

func TestSession_LocalDraftPersistedBeforeRemoteSave(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{version: 2}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "typed"))

	// Before the debounce window elapses the draft is already durable.
	draft, err := f.drafts.LoadDraft(context.Background(), "ch1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "typed", draft.Content)
	assert.False(t, draft.Synced)
	assert.Empty(t, client.saveCalls(), "remote save must wait for the debounce window")
}

func TestSession_ConflictIsTerminal(t *testing.T) {
	client := &fakeClient{
		loaded: domain.ChapterContent{Content: "old", Version: 3},
		results: []saveResult{{err: &remote.ConflictError{
			ChapterID: "ch1", BaseVersion: 3, ServerVersion: 5,
		}}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "mine"))
	waitForState(t, s, domain.StateError)

	got := s.Status()
	assert.False(t, got.Retryable, "a conflict cannot be retried with the same version token")

	// No automatic retry happens.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, client.saveCalls(), 1)

	// The unsynced edit survives in the draft store for recovery.
	draft, err := f.drafts.LoadDraft(context.Background(), "ch1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "mine", draft.Content)
	assert.False(t, draft.Synced)
}

func TestSession_ValidationRejectionIsTerminal(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{err: &remote.ValidationError{ChapterID: "ch1", Message: "too large"}}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "huge"))
	waitForState(t, s, domain.StateError)

	assert.False(t, s.Status().Retryable)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, client.saveCalls(), 1, "rejected payloads are never retried")
}

func TestSession_TransientRetriesUntilExhausted(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{err: &remote.HTTPError{StatusCode: 502, Message: "bad gateway"}}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "content"))
	waitForState(t, s, domain.StateError)

	require.Eventually(t, func() bool {
		return len(client.saveCalls()) == 3 && s.Status().Retryable
	}, 2*time.Second, 2*time.Millisecond)

	// Terminal after the budget; no further automatic attempts.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, client.saveCalls(), 3)
}

func TestSession_UnclassifiedStatusIsRetried(t *testing.T) {
	client := &fakeClient{
		loaded: domain.ChapterContent{Version: 1},
		results: []saveResult{
			{err: &remote.HTTPError{StatusCode: 404, Message: "route moved"}},
			{version: 2},
		},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "content"))
	waitForState(t, s, domain.StateSaved)

	assert.Len(t, client.saveCalls(), 2, "a non-conflict, non-rejection status gets another attempt")
}

func TestSession_ExplicitRetryAfterExhaustion(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{err: &remote.HTTPError{StatusCode: 503, Message: "unavailable"}}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "content"))
	require.Eventually(t, func() bool {
		return len(client.saveCalls()) == 3
	}, 2*time.Second, 2*time.Millisecond)

	// The server recovers; the user taps retry.
	client.mu.Lock()
	client.results = []saveResult{{version: 2}}
	client.mu.Unlock()

	s.Retry()
	waitForState(t, s, domain.StateSaved)
	assert.Equal(t, 4, len(client.saveCalls()))
}

func TestSession_RetryWithoutErrorIsIgnored(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{version: 2}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "fine"))
	waitForState(t, s, domain.StateSaved)

	// Tapping retry after the save landed resends nothing.
	s.Retry()
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, client.saveCalls(), 1)
}

func TestSession_RetryCarriesLatestContent(t *testing.T) {
	client := &fakeClient{
		loaded: domain.ChapterContent{Version: 1},
		results: []saveResult{
			{err: &remote.HTTPError{StatusCode: 500, Message: "boom"}},
			{version: 2},
		},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "first"))
	require.Eventually(t, func() bool {
		return len(client.saveCalls()) >= 1
	}, 2*time.Second, time.Millisecond)

	// Keep typing between the failed attempt and its retry.
	require.NoError(t, s.Edit(context.Background(), "first and second"))
	waitForState(t, s, domain.StateSaved)

	calls := client.saveCalls()
	assert.Equal(t, "first and second", calls[len(calls)-1].Content,
		"the retry must pick up the latest editor state")
}

func TestSession_EditAfterTerminalErrorReArmsSchedule(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{err: &remote.ValidationError{ChapterID: "ch1", Message: "nope"}}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), "bad"))
	waitForState(t, s, domain.StateError)

	client.mu.Lock()
	client.results = []saveResult{{version: 2}}
	client.mu.Unlock()

	// A fresh edit saves on its own schedule, without tapping retry.
	require.NoError(t, s.Edit(context.Background(), "good"))
	waitForState(t, s, domain.StateSaved)
	assert.Equal(t, 2, len(client.saveCalls()))
}

func TestSession_RecoversUnsyncedDraftOnActivate(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Content: "server copy", Version: 3},
		results: []saveResult{{version: 4}},
	}
	drafts := draftstore.NewMemoryStore()
	require.NoError(t, drafts.SaveDraft(context.Background(), &domain.DraftEntry{
		ChapterID: "ch1",
		Content:   "unsent local edit",
		UpdatedAt: time.Now(),
		Version:   3,
		Synced:    false,
	}))

	manager := NewManager(client, drafts, diag.NewRing(8), Options{Debounce: 20 * time.Millisecond})
	t.Cleanup(manager.CloseAll)

	resp, err := manager.Open(context.Background(), "ch1")
	require.NoError(t, err)
	assert.True(t, resp.RecoveredDraft)
	assert.Equal(t, "unsent local edit", resp.Content)
	assert.Equal(t, int64(3), resp.Version, "baseline stays at the server version")

	// The recovered edit goes back on the save schedule.
	require.Eventually(t, func() bool {
		calls := client.saveCalls()
		return len(calls) == 1 && calls[0].Content == "unsent local edit"
	}, 2*time.Second, 2*time.Millisecond)
}

func TestSession_SyncedDraftNotRecovered(t *testing.T) {
	client := &fakeClient{loaded: domain.ChapterContent{Content: "server copy", Version: 5}}
	drafts := draftstore.NewMemoryStore()
	require.NoError(t, drafts.SaveDraft(context.Background(), &domain.DraftEntry{
		ChapterID: "ch1",
		Content:   "server copy",
		Version:   5,
		Synced:    true,
	}))

	manager := NewManager(client, drafts, diag.NewRing(8), Options{Debounce: time.Hour})
	t.Cleanup(manager.CloseAll)

	resp, err := manager.Open(context.Background(), "ch1")
	require.NoError(t, err)
	assert.False(t, resp.RecoveredDraft)
	assert.Equal(t, "server copy", resp.Content)
}

func TestSession_StaleDraftLosesToNewerServerVersion(t *testing.T) {
	client := &fakeClient{loaded: domain.ChapterContent{Content: "newer on server", Version: 9}}
	drafts := draftstore.NewMemoryStore()
	require.NoError(t, drafts.SaveDraft(context.Background(), &domain.DraftEntry{
		ChapterID: "ch1",
		Content:   "stale local",
		Version:   4,
		Synced:    false,
	}))

	manager := NewManager(client, drafts, diag.NewRing(8), Options{Debounce: time.Hour})
	t.Cleanup(manager.CloseAll)

	resp, err := manager.Open(context.Background(), "ch1")
	require.NoError(t, err)
	assert.False(t, resp.RecoveredDraft)
	assert.Equal(t, "newer on server", resp.Content)
}

func TestSession_CloseFlushesOwedEdit(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{version: 2}},
	}
	drafts := draftstore.NewMemoryStore()
	manager := NewManager(client, drafts, diag.NewRing(8), Options{Debounce: time.Hour})

	resp, err := manager.Open(context.Background(), "ch1")
	require.NoError(t, err)
	session, err := manager.Get(resp.SessionID)
	require.NoError(t, err)

	// The debounce window is far away; closing must still attempt the save.
	require.NoError(t, session.Edit(context.Background(), "last words"))
	require.NoError(t, manager.Close(resp.SessionID))

	calls := client.saveCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "last words", calls[0].Content)
}

func TestSession_EditAfterCloseFails(t *testing.T) {
	client := &fakeClient{loaded: domain.ChapterContent{Version: 1}}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, f.manager.Close(s.ID))
	assert.Error(t, s.Edit(context.Background(), "too late"))
}

func TestSession_OpeningSameChapterReplacesSession(t *testing.T) {
	client := &fakeClient{loaded: domain.ChapterContent{Version: 1}}
	f := newFixture(t, client)
	first := openSession(t, f, "ch1")

	resp, err := f.manager.Open(context.Background(), "ch1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, resp.SessionID)

	_, err = f.manager.Get(first.ID)
	assert.Error(t, err, "the replaced session is gone")
	assert.Error(t, first.Edit(context.Background(), "x"))
}

func TestSession_EmptyContentSavesNormally(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Content: "everything", Version: 2},
		results: []saveResult{{version: 3}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	require.NoError(t, s.Edit(context.Background(), ""))
	waitForState(t, s, domain.StateSaved)

	calls := client.saveCalls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Content, "deleting everything is a valid save")
}

func TestSession_StatusSubscription(t *testing.T) {
	client := &fakeClient{
		loaded:  domain.ChapterContent{Version: 1},
		results: []saveResult{{version: 2}},
	}
	f := newFixture(t, client)
	s := openSession(t, f, "ch1")

	var mu sync.Mutex
	var states []domain.SaveState
	unsubscribe := s.Subscribe(func(st domain.SaveStatus) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, s.Edit(context.Background(), "hello"))
	waitForState(t, s, domain.StateSaved)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, domain.StateSaving, states[0])
	assert.Equal(t, domain.StateSaved, states[len(states)-1])
}
