package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SearchStories_Indexed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "The dragon guarded a pile of mismatched socks.", "silly", "dragon", nil)
	require.NoError(t, err)
	_, _, err = store.CreateStory(ctx, "The owl opened a tiny library.", "animals", "owl", nil)
	require.NoError(t, err)

	results, err := store.SearchStories(ctx, "dragon", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)
	assert.NotNil(t, results[0].Rank, "indexed results carry a rank")
}

func TestStore_SearchStories_RankOrdersByRelevance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	heavy, _, err := store.CreateStory(ctx, "The comet sang. The comet spun. The comet slept.", "space", "comet", nil)
	require.NoError(t, err)
	light, _, err := store.CreateStory(ctx, "The comet passed over the quiet sleeping town.", "space", "night", nil)
	require.NoError(t, err)

	results, err := store.SearchStories(ctx, "comet", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, heavy.ID, results[0].Story.ID)
	assert.Equal(t, light.ID, results[1].Story.ID)
	require.NotNil(t, results[0].Rank)
	require.NotNil(t, results[1].Rank)
	assert.LessOrEqual(t, *results[0].Rank, *results[1].Rank)
}

func TestStore_SearchStories_EmptyQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.CreateStory(ctx, "Anything at all.", "bedtime", "", nil)
	require.NoError(t, err)

	for _, query := range []string{"", "   ", "\t\n"} {
		results, err := store.SearchStories(ctx, query, 10, true)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestStore_SearchStories_OverlongQuery(t *testing.T) {
	store := setupTestStore(t)

	results, err := store.SearchStories(context.Background(), strings.Repeat("a", maxQueryLen+1), 10, true)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchStories_PunctuationFallsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Nothing matches: still no error, just an empty list
	results, err := store.SearchStories(ctx, "???", 10, true)
	require.NoError(t, err)
	assert.Empty(t, results)

	story, _, err := store.CreateStory(ctx, "Who goes there??? whispered the owl.", "bedtime", "owl", nil)
	require.NoError(t, err)

	results, err = store.SearchStories(ctx, "???", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)
	assert.Nil(t, results[0].Rank, "fallback results carry no rank")
}

func TestStore_SearchStories_SubstringFallbackOnZeroIndexRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "The sleepy dragonfly drifted home.", "animals", "dragonfly", nil)
	require.NoError(t, err)

	// "ragonf" is no full token, so the index misses and the substring
	// scan picks it up
	results, err := store.SearchStories(ctx, "ragonf", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)
	assert.Nil(t, results[0].Rank)
}

func TestStore_SearchStories_UseIndexDisabled(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "The rocket ran on giggles.", "space", "rocket", nil)
	require.NoError(t, err)

	results, err := store.SearchStories(ctx, "rocket", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)
	assert.Nil(t, results[0].Rank)
}

func TestStore_SearchStories_ClampsLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, _, err := store.CreateStory(ctx, fmt.Sprintf("Story %d carried a lantern.", i), "bedtime", "", nil)
		require.NoError(t, err)
	}

	for _, limit := range []int{0, -5, 1000} {
		results, err := store.SearchStories(ctx, "lantern", limit, true)
		require.NoError(t, err)
		assert.Len(t, results, maxSearchResults)
	}

	results, err := store.SearchStories(ctx, "lantern", 7, true)
	require.NoError(t, err)
	assert.Len(t, results, 7)
}

func TestStore_SearchStories_CollapsesAudioRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "A twice narrated moonbeam.", "bedtime", "moon", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveAudio(ctx, &Audio{StoryID: story.ID, VoiceID: "voice-a"}))
	latest := &Audio{StoryID: story.ID, VoiceID: "voice-b"}
	require.NoError(t, store.SaveAudio(ctx, latest))

	results, err := store.SearchStories(ctx, "moonbeam", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Audio)
	assert.Equal(t, latest.ID, results[0].Audio.ID)
}

func TestStore_SearchStories_IndexFollowsUpdates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "A castle made of clouds.", "bedtime", "castle", nil)
	require.NoError(t, err)

	_, err = store.UpdateStory(ctx, story.ID, "A lighthouse made of clouds.", "bedtime", "lighthouse")
	require.NoError(t, err)

	results, err := store.SearchStories(ctx, "lighthouse", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)

	results, err = store.SearchStories(ctx, "castle", 10, true)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchStories_IndexForgetsDeleted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "A vanishing ship of paper.", "adventure", "ship", nil)
	require.NoError(t, err)

	deleted, err := store.DeleteStory(ctx, story.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	results, err := store.SearchStories(ctx, "vanishing", 10, true)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchStoriesByTitle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "Nothing relevant in the body.", "adventure", "dragon", nil)
	require.NoError(t, err)

	byTopic, err := store.SearchStoriesByTitle(ctx, "drag", 10)
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, story.ID, byTopic[0].Story.ID)

	byCategory, err := store.SearchStoriesByTitle(ctx, "advent", 10)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	// Body text is out of scope for title search
	byBody, err := store.SearchStoriesByTitle(ctx, "relevant", 10)
	require.NoError(t, err)
	assert.Empty(t, byBody)
}

func TestStore_SearchStoriesByContent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	story, _, err := store.CreateStory(ctx, "The marmalade cat napped in the window.", "animals", "cat", nil)
	require.NoError(t, err)

	results, err := store.SearchStoriesByContent(ctx, "MARMALADE", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, story.ID, results[0].Story.ID)

	// Category is out of scope for content search
	results, err = store.SearchStoriesByContent(ctx, "animals", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
