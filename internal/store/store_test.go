package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "vault.db"), filepath.Join(tmpDir, "audio"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// openVault opens a store at an explicit path without initializing it, for
// tests that need to stage legacy data or reopen an existing vault.
func openVault(t *testing.T, dbPath string) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(dbPath, filepath.Join(filepath.Dir(dbPath), "audio"))
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_Initialize_StateTransitions(t *testing.T) {
	tmpDir := t.TempDir()
	store := openVault(t, filepath.Join(tmpDir, "vault.db"))

	assert.Equal(t, StateUninitialized, store.State())

	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, StateReady, store.State())
}

func TestStore_Initialize_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "vault.db")
	ctx := context.Background()

	store := openVault(t, dbPath)
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx))

	story, duplicate, err := store.CreateStory(ctx, "A tale that survives restarts.", "bedtime", "moon", nil)
	require.NoError(t, err)
	require.False(t, duplicate)

	// A second store on the same file re-runs the whole initialization path
	reopened := openVault(t, dbPath)
	require.NoError(t, reopened.Initialize(ctx))

	retrieved, err := reopened.GetStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.Text, retrieved.Text)
	assert.Equal(t, story.Fingerprint, retrieved.Fingerprint)
}

// legacySchema is the story table as it existed before tags, fingerprints,
// and sharing were added.
const legacySchema = `
	CREATE TABLE stories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		topic TEXT,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
`

func TestStore_Initialize_MigratesLegacySchema(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "vault.db")
	ctx := context.Background()

	store := openVault(t, dbPath)
	_, err := store.db.ExecContext(ctx, legacySchema)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, `
		INSERT INTO stories (text, category, topic, created_at, updated_at)
		VALUES ('An old story.', 'bedtime', 'moon', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	require.NoError(t, err)

	require.NoError(t, store.Initialize(ctx))

	story, err := store.GetStory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "An old story.", story.Text)
	assert.Equal(t, Fingerprint("An old story.", "bedtime", "moon"), story.Fingerprint)
	assert.False(t, story.IsShared)
	assert.Nil(t, story.Tags)

	// Migrated stories are reachable through the new search index
	results, err := store.SearchStories(ctx, "old story", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Story.ID)
}

func TestStore_Initialize_BackfillPurgesDuplicates(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "vault.db")
	ctx := context.Background()

	store := openVault(t, dbPath)
	_, err := store.db.ExecContext(ctx, legacySchema)
	require.NoError(t, err)
	for i, text := range []string{"Twice told.", "Twice told.", "Once told."} {
		_, err = store.db.ExecContext(ctx, `
			INSERT INTO stories (text, category, topic, created_at, updated_at)
			VALUES (?, 'bedtime', 'moon', ?, ?)
		`, text, fmt.Sprintf("2024-01-0%dT00:00:00Z", i+1), fmt.Sprintf("2024-01-0%dT00:00:00Z", i+1))
		require.NoError(t, err)
	}

	require.NoError(t, store.Initialize(ctx))

	// The first-seen copy survives, the later duplicate is purged
	stories, err := store.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 2)

	_, err = store.GetStory(ctx, 1)
	assert.NoError(t, err)
	_, err = store.GetStory(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetStory(ctx, 3)
	assert.NoError(t, err)
}

func TestStore_Initialize_BackfillRunsOnce(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "vault.db")
	ctx := context.Background()

	store := openVault(t, dbPath)
	_, err := store.db.ExecContext(ctx, legacySchema)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, `
		INSERT INTO stories (text, category, topic, created_at, updated_at)
		VALUES ('Legacy.', 'bedtime', NULL, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))

	// With no null fingerprints left, a reopened store skips the backfill
	// and leaves existing rows alone
	reopened := openVault(t, dbPath)
	require.NoError(t, reopened.Initialize(ctx))

	stories, err := reopened.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, Fingerprint("Legacy.", "bedtime", ""), stories[0].Story.Fingerprint)
}

func TestStore_Scenario_StoryLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, duplicate, err := store.CreateStory(ctx, "Once there was a fox.", "adventure", "fox", nil)
	require.NoError(t, err)
	require.False(t, duplicate)
	require.Equal(t, int64(1), story.ID)

	// Identical create returns the stored row, no new id
	again, duplicate, err := store.CreateStory(ctx, "Once there was a fox.", "adventure", "fox", nil)
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, story.ID, again.ID)

	beforeUpdate := time.Now().UTC().Truncate(time.Second)
	updated, err := store.UpdateStory(ctx, story.ID, "Once there was a clever fox.", "adventure", "fox")
	require.NoError(t, err)
	assert.Equal(t, "Once there was a clever fox.", updated.Text)
	assert.False(t, updated.UpdatedAt.Before(beforeUpdate))

	fav, err := store.SetStoryFavorite(ctx, story.ID, true)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)

	added, err := store.AppendToQueue(ctx, story.ID)
	require.NoError(t, err)
	require.True(t, added)
	queue, err := store.GetQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{story.ID}, queue)

	token, err := store.ShareStory(ctx, story.ID)
	require.NoError(t, err)
	shared, err := store.GetStoryByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, story.ID, shared.ID)

	deleted, err := store.DeleteStory(ctx, story.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.GetStory(ctx, story.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	queue, err = store.GetQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
	_, err = store.GetStoryByToken(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Stats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &VaultStats{}, empty)

	first, _, err := store.CreateStory(ctx, "The owl opened a library.", "animals", "owl", nil)
	require.NoError(t, err)
	second, _, err := store.CreateStory(ctx, "The moon wore a hat.", "bedtime", "moon", nil)
	require.NoError(t, err)

	_, err = store.SetStoryFavorite(ctx, first.ID, true)
	require.NoError(t, err)
	_, err = store.ShareStory(ctx, second.ID)
	require.NoError(t, err)
	_, err = store.AppendToQueue(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, store.SaveAudio(ctx, &Audio{StoryID: first.ID}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &VaultStats{
		Stories:       2,
		Favorites:     1,
		Shared:        1,
		Queued:        1,
		Narrations:    1,
		AwaitingAudio: 1,
	}, stats)
}

func TestStore_SeedSampleStories(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	inserted, err := store.SeedSampleStories(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleStories), inserted)

	// Seeding is a no-op once the vault holds anything
	inserted, err = store.SeedSampleStories(ctx)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestStore_SeedSampleStories_SkipsNonEmptyVault(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.CreateStory(ctx, "Already here.", "bedtime", "", nil)
	require.NoError(t, err)

	inserted, err := store.SeedSampleStories(ctx)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	stories, err := store.ListStories(ctx)
	require.NoError(t, err)
	assert.Len(t, stories, 1)
}
