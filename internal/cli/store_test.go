package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftcrane-agent/internal/config"
	"draftcrane-agent/internal/domain"
	"draftcrane-agent/internal/draftstore"
)

func sqliteConfig(path string) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: path},
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	store, err := openStore(sqliteConfig(filepath.Join(t.TempDir(), "drafts.db")))
	require.NoError(t, err)
	defer store.Close()

	fb, ok := store.(*draftstore.Fallback)
	require.True(t, ok)
	assert.False(t, fb.Degraded())
}

func TestOpenStore_UnavailableBackendDegradesToMemory(t *testing.T) {
	// A path inside a directory that does not exist cannot be opened; the
	// agent must still come up with memory-only drafts instead of refusing
	// to start.
	path := filepath.Join(t.TempDir(), "missing", "deeper", "drafts.db")
	store, err := openStore(sqliteConfig(path))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveDraft(ctx, &domain.DraftEntry{
		ChapterID: "c",
		Content:   "still editing",
		Version:   1,
	}))

	got, err := store.LoadDraft(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "still editing", got.Content)
}

func TestOpenStore_UnknownDriverFails(t *testing.T) {
	_, err := openStore(&config.Config{Store: config.StoreConfig{Driver: "redis"}})
	require.Error(t, err)
}
