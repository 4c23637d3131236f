// ABOUTME: Story CRUD operations for the SQLite store
// ABOUTME: Covers ingest with dedup, listing with latest audio, update, favorite, delete

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// CreateStory ingests a story, deduplicating on content fingerprint. When an
// identical story already exists the stored row is returned with true and
// nothing is written. The unique index on content_fingerprint backstops
// concurrent inserts of the same content.
func (s *SQLiteStore) CreateStory(ctx context.Context, text, category, topic string, tags []string) (*Story, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, fmt.Errorf("story text is empty")
	}

	fp := Fingerprint(text, category, topic)

	if s.seen.Seen(fp) {
		existing, err := s.getStoryByFingerprint(ctx, fp)
		if err == nil {
			return existing, true, nil
		}
		if err != ErrNotFound {
			return nil, false, err
		}
		// Cached fingerprint with no backing row; forget it and ingest
		s.seen.Forget(fp)
	}

	existing, err := s.getStoryByFingerprint(ctx, fp)
	if err == nil {
		s.seen.Remember(fp)
		return existing, true, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}

	tagsValue, err := marshalTags(tags)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	nowStr := now.Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (text, category, topic, tags, content_fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, text, category, nullString(topic), tagsValue, fp, nowStr, nowStr)
	if err != nil {
		if isConstraintViolation(err) {
			// Lost a race with a concurrent insert of the same content
			existing, lookupErr := s.getStoryByFingerprint(ctx, fp)
			if lookupErr == nil {
				s.seen.Remember(fp)
				return existing, true, nil
			}
			return nil, false, fmt.Errorf("%w: %v", ErrConstraint, err)
		}
		return nil, false, fmt.Errorf("inserting story: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("getting story id: %w", err)
	}

	s.seen.Remember(fp)
	s.logger.Debug("created story", "id", id, "category", category)

	return &Story{
		ID:          id,
		Text:        text,
		Category:    category,
		Topic:       topic,
		Tags:        tags,
		Fingerprint: fp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, false, nil
}

// GetStory returns a single story by id
func (s *SQLiteStore) GetStory(ctx context.Context, id int64) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, category, topic, tags, is_favorite, content_fingerprint,
		       is_shared, share_token, shared_at, created_at, updated_at
		FROM stories
		WHERE id = ?
	`, id)

	story, err := scanStory(row)
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting story %d: %w", id, err)
	}
	return story, nil
}

func (s *SQLiteStore) getStoryByFingerprint(ctx context.Context, fp string) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, category, topic, tags, is_favorite, content_fingerprint,
		       is_shared, share_token, shared_at, created_at, updated_at
		FROM stories
		WHERE content_fingerprint = ?
	`, fp)

	story, err := scanStory(row)
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting story by fingerprint: %w", err)
	}
	return story, nil
}

// ListStories returns all stories, newest first, each with its most recent
// audio if any
func (s *SQLiteStore) ListStories(ctx context.Context) ([]*StoryWithAudio, error) {
	return s.listStoriesWithAudio(ctx, `
		SELECT s.id, s.text, s.category, s.topic, s.tags, s.is_favorite, s.content_fingerprint,
		       s.is_shared, s.share_token, s.shared_at, s.created_at, s.updated_at,
		       a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at
		FROM stories s
		LEFT JOIN audio a ON a.story_id = s.id
		ORDER BY s.created_at DESC, s.id DESC, a.created_at DESC, a.id DESC
	`)
}

// ListStoriesByCategory returns the stories in one category, newest first,
// each with its most recent audio if any
func (s *SQLiteStore) ListStoriesByCategory(ctx context.Context, category string) ([]*StoryWithAudio, error) {
	return s.listStoriesWithAudio(ctx, `
		SELECT s.id, s.text, s.category, s.topic, s.tags, s.is_favorite, s.content_fingerprint,
		       s.is_shared, s.share_token, s.shared_at, s.created_at, s.updated_at,
		       a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at
		FROM stories s
		LEFT JOIN audio a ON a.story_id = s.id
		WHERE s.category = ?
		ORDER BY s.created_at DESC, s.id DESC, a.created_at DESC, a.id DESC
	`, category)
}

// listStoriesWithAudio runs a story/audio join and collapses it to one entry
// per story. Audio rows sort newest first within each story, so the first row
// seen for a story carries its latest audio.
func (s *SQLiteStore) listStoriesWithAudio(ctx context.Context, query string, args ...any) ([]*StoryWithAudio, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	defer rows.Close()

	var stories []*StoryWithAudio
	for rows.Next() {
		swa, err := scanStoryWithAudio(rows)
		if err != nil {
			return nil, err
		}
		if n := len(stories); n > 0 && stories[n-1].Story.ID == swa.Story.ID {
			// Older audio row for the story we already emitted
			continue
		}
		stories = append(stories, swa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return stories, nil
}

// UpdateStory replaces a story's text, category, and topic. The content
// fingerprint is left untouched; edits are not re-deduplicated against
// other stories.
func (s *SQLiteStore) UpdateStory(ctx context.Context, id int64, text, category, topic string) (*Story, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("story text is empty")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE stories
		SET text = ?, category = ?, topic = ?, updated_at = ?
		WHERE id = ?
	`, text, category, nullString(topic), nowString(), id)
	if err != nil {
		return nil, fmt.Errorf("updating story %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("updated story", "id", id)
	return s.GetStory(ctx, id)
}

// SetStoryFavorite sets the favorite flag and returns the fresh row
func (s *SQLiteStore) SetStoryFavorite(ctx context.Context, id int64, favorite bool) (*Story, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stories
		SET is_favorite = ?, updated_at = ?
		WHERE id = ?
	`, favorite, nowString(), id)
	if err != nil {
		return nil, fmt.Errorf("setting favorite on story %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking favorite result: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("set story favorite", "id", id, "favorite", favorite)
	return s.GetStory(ctx, id)
}

// DeleteStory removes a story, its audio rows and files, and its queue entry.
// Audio file removal is best effort: a failed unlink is logged as a warning
// and the row delete proceeds so metadata never outlives its story. Returns
// false when no story has the given id.
func (s *SQLiteStore) DeleteStory(ctx context.Context, id int64) (bool, error) {
	var fingerprint sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT content_fingerprint FROM stories WHERE id = ?`, id).Scan(&fingerprint)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up story %d: %w", id, err)
	}

	paths, err := s.audioFilePaths(ctx, id)
	if err != nil {
		return false, err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove audio file", "story_id", id, "path", path, "error", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting story %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if fingerprint.Valid {
		s.seen.Forget(fingerprint.String)
	}
	s.logger.Debug("deleted story", "id", id)
	return true, nil
}

func (s *SQLiteStore) audioFilePaths(ctx context.Context, storyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path FROM audio WHERE story_id = ?`, storyID)
	if err != nil {
		return nil, fmt.Errorf("listing audio files for story %d: %w", storyID, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning audio path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audio paths: %w", err)
	}
	return paths, nil
}

// GetStoryWithAudio returns one story together with its most recent audio
func (s *SQLiteStore) GetStoryWithAudio(ctx context.Context, id int64) (*StoryWithAudio, error) {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	audio, err := s.GetAudioByStoryID(ctx, id)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	return &StoryWithAudio{Story: story, Audio: audio}, nil
}

// ListRecentStoriesWithoutAudio returns the newest stories that have no audio
// yet, up to limit. These are the candidates for narration.
func (s *SQLiteStore) ListRecentStoriesWithoutAudio(ctx context.Context, limit int) ([]*Story, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, category, topic, tags, is_favorite, content_fingerprint,
		       is_shared, share_token, shared_at, created_at, updated_at
		FROM stories s
		WHERE NOT EXISTS (SELECT 1 FROM audio a WHERE a.story_id = s.id)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stories without audio: %w", err)
	}
	defer rows.Close()

	var stories []*Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return stories, nil
}

// scanStoryWithAudio scans the canonical story column list followed by the
// nullable audio columns from a LEFT JOIN:
// a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at
func scanStoryWithAudio(sc scanner) (*StoryWithAudio, error) {
	var story Story
	var topic, tags, fingerprint, shareToken, sharedAt sql.NullString
	var createdAt, updatedAt string
	var audioID, audioStoryID sql.NullInt64
	var fileName, filePath, voiceID, voiceSettings, audioCreatedAt sql.NullString

	err := sc.Scan(
		&story.ID,
		&story.Text,
		&story.Category,
		&topic,
		&tags,
		&story.IsFavorite,
		&fingerprint,
		&story.IsShared,
		&shareToken,
		&sharedAt,
		&createdAt,
		&updatedAt,
		&audioID,
		&audioStoryID,
		&fileName,
		&filePath,
		&voiceID,
		&voiceSettings,
		&audioCreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning story with audio: %w", err)
	}

	story.Topic = topic.String
	story.Fingerprint = fingerprint.String
	story.ShareToken = shareToken.String

	story.Tags, err = unmarshalTags(tags)
	if err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if sharedAt.Valid {
		t, err := time.Parse(time.RFC3339, sharedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing shared_at: %w", err)
		}
		story.SharedAt = &t
	}
	story.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	story.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	swa := &StoryWithAudio{Story: &story}
	if audioID.Valid {
		audio := &Audio{
			ID:       audioID.Int64,
			StoryID:  audioStoryID.Int64,
			FileName: fileName.String,
			FilePath: filePath.String,
			VoiceID:  voiceID.String,
		}
		if voiceSettings.Valid && voiceSettings.String != "" {
			audio.VoiceSettings = json.RawMessage(voiceSettings.String)
		}
		if audioCreatedAt.Valid {
			t, err := time.Parse(time.RFC3339, audioCreatedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing audio created_at: %w", err)
			}
			audio.CreatedAt = t
		}
		swa.Audio = audio
	}
	return swa, nil
}
