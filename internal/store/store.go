// ABOUTME: Store interface and data types for fable-vault persistence
// ABOUTME: Defines Story, Audio, queue and sharing types plus the Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidQuery is returned internally for empty or over-long search input.
// The search surface converts it to an empty result set instead of failing.
var ErrInvalidQuery = errors.New("invalid search query")

// ErrConstraint is returned when a uniqueness or reference constraint is
// violated outside the normal dedup path
var ErrConstraint = errors.New("constraint violation")

// Story represents a persisted generated story
type Story struct {
	ID          int64
	Text        string
	Category    string
	Topic       string   // optional free-text qualifier
	Tags        []string // display order only
	IsFavorite  bool
	Fingerprint string // content hash, unique across all stories
	IsShared    bool
	ShareToken  string     // empty when not shared
	SharedAt    *time.Time // nil when not shared
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Audio represents one narration artifact for a story. A story may
// accumulate several rows over time; only the most recent is surfaced.
type Audio struct {
	ID            int64
	StoryID       int64
	FileName      string
	FilePath      string
	VoiceID       string
	VoiceSettings json.RawMessage // opaque synthesis parameters, stored verbatim
	CreatedAt     time.Time
}

// StoryWithAudio pairs a story with its most recent narration, if any
type StoryWithAudio struct {
	Story *Story
	Audio *Audio // nil when the story has no narration yet
}

// SearchResult is a matched story with its most recent narration and,
// for indexed matches, a relevance score (lower is more relevant)
type SearchResult struct {
	Story *Story
	Audio *Audio
	Rank  *float64 // nil when found by substring fallback
}

// VaultStats summarizes the vault contents
type VaultStats struct {
	Stories       int
	Favorites     int
	Shared        int
	Queued        int
	Narrations    int
	AwaitingAudio int
}

// Store defines the interface for story persistence, search, queueing and sharing
type Store interface {
	// Initialize creates the schema and applies migrations. It is
	// idempotent and must be called once before any other operation.
	Initialize(ctx context.Context) error

	// Stories
	CreateStory(ctx context.Context, text, category, topic string, tags []string) (*Story, bool, error)
	GetStory(ctx context.Context, id int64) (*Story, error)
	ListStories(ctx context.Context) ([]*StoryWithAudio, error)
	ListStoriesByCategory(ctx context.Context, category string) ([]*StoryWithAudio, error)
	UpdateStory(ctx context.Context, id int64, text, category, topic string) (*Story, error)
	SetStoryFavorite(ctx context.Context, id int64, favorite bool) (*Story, error)
	DeleteStory(ctx context.Context, id int64) (bool, error)
	GetStoryWithAudio(ctx context.Context, id int64) (*StoryWithAudio, error)
	ListRecentStoriesWithoutAudio(ctx context.Context, limit int) ([]*Story, error)

	// Audio
	SaveAudio(ctx context.Context, audio *Audio) error
	GetAudioByStoryID(ctx context.Context, storyID int64) (*Audio, error)

	// Search
	SearchStories(ctx context.Context, query string, limit int, useIndex bool) ([]*SearchResult, error)
	SearchStoriesByTitle(ctx context.Context, query string, limit int) ([]*SearchResult, error)
	SearchStoriesByContent(ctx context.Context, query string, limit int) ([]*SearchResult, error)

	// Playback queue
	GetQueue(ctx context.Context) ([]int64, error)
	SetQueue(ctx context.Context, ids []int64) error
	AppendToQueue(ctx context.Context, id int64) (bool, error)
	RemoveFromQueue(ctx context.Context, id int64) (bool, error)

	// Sharing
	ShareStory(ctx context.Context, id int64) (string, error)
	UnshareStory(ctx context.Context, id int64) (bool, error)
	GetStoryByToken(ctx context.Context, token string) (*Story, error)
	ListSharedStories(ctx context.Context) ([]*Story, error)

	// Maintenance
	SeedSampleStories(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*VaultStats, error)
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (int, error)

	// Close releases any resources held by the store
	Close() error
}
