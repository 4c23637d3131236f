package store

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ShareStory_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "A story worth sharing.", "bedtime", "moon", nil)
	require.NoError(t, err)

	token, err := store.ShareStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Len(t, token, shareTokenBytes*2)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err, "token should be hex")

	shared, err := store.GetStoryByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, story.ID, shared.ID)
	assert.True(t, shared.IsShared)
	assert.Equal(t, token, shared.ShareToken)
	require.NotNil(t, shared.SharedAt)
}

func TestStore_ShareStory_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ShareStory(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ShareStory_RotatesToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "Shared twice over.", "bedtime", "", nil)
	require.NoError(t, err)

	first, err := store.ShareStory(ctx, story.ID)
	require.NoError(t, err)
	second, err := store.ShareStory(ctx, story.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Only the current token resolves
	_, err = store.GetStoryByToken(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)
	shared, err := store.GetStoryByToken(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, story.ID, shared.ID)
}

func TestStore_UnshareStory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "Shared, then private again.", "bedtime", "", nil)
	require.NoError(t, err)
	token, err := store.ShareStory(ctx, story.ID)
	require.NoError(t, err)

	changed, err := store.UnshareStory(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = store.GetStoryByToken(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	retrieved, err := store.GetStory(ctx, story.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.IsShared)
	assert.Empty(t, retrieved.ShareToken)
	assert.Nil(t, retrieved.SharedAt)

	// Unsharing again is a quiet no-op
	changed, err = store.UnshareStory(ctx, story.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStore_UnshareStory_Missing(t *testing.T) {
	store := setupTestStore(t)

	changed, err := store.UnshareStory(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStore_GetStoryByToken_UnknownToken(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetStoryByToken(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListSharedStories(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, _, err := store.CreateStory(ctx, "Shared early.", "bedtime", "", nil)
	require.NoError(t, err)
	second, _, err := store.CreateStory(ctx, "Shared late.", "bedtime", "", nil)
	require.NoError(t, err)
	_, _, err = store.CreateStory(ctx, "Never shared.", "bedtime", "", nil)
	require.NoError(t, err)

	_, err = store.ShareStory(ctx, first.ID)
	require.NoError(t, err)
	_, err = store.ShareStory(ctx, second.ID)
	require.NoError(t, err)

	shared, err := store.ListSharedStories(ctx)
	require.NoError(t, err)
	require.Len(t, shared, 2)
	assert.Equal(t, second.ID, shared[0].ID)
	assert.Equal(t, first.ID, shared[1].ID)
}
