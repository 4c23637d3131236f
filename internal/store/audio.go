// ABOUTME: Audio narration persistence for stories
// ABOUTME: Stores narration metadata rows; only the most recent row per story is surfaced

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SaveAudio records a narration for a story. FileName and FilePath default to
// a fresh UUID under the audio directory when unset. The story must exist;
// saving against a deleted story reports a constraint violation.
func (s *SQLiteStore) SaveAudio(ctx context.Context, audio *Audio) error {
	if audio.StoryID == 0 {
		return fmt.Errorf("audio requires a story id")
	}
	if audio.FileName == "" {
		audio.FileName = uuid.NewString() + ".mp3"
	}
	if audio.FilePath == "" {
		audio.FilePath = filepath.Join(s.audioDir, audio.FileName)
	}

	now := time.Now().UTC().Truncate(time.Second)
	var settings any
	if len(audio.VoiceSettings) > 0 {
		settings = string(audio.VoiceSettings)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO audio (story_id, file_name, file_path, voice_id, voice_settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, audio.StoryID, audio.FileName, audio.FilePath, nullString(audio.VoiceID), settings, now.Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: story %d does not exist", ErrConstraint, audio.StoryID)
		}
		return fmt.Errorf("inserting audio: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audio id: %w", err)
	}
	audio.ID = id
	audio.CreatedAt = now

	s.logger.Debug("saved audio", "story_id", audio.StoryID, "file", audio.FileName)
	return nil
}

// GetAudioByStoryID returns the most recent narration for a story, or
// ErrNotFound when the story has none
func (s *SQLiteStore) GetAudioByStoryID(ctx context.Context, storyID int64) (*Audio, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, story_id, file_name, file_path, voice_id, voice_settings, created_at
		FROM audio
		WHERE story_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, storyID)

	audio, err := scanAudio(row)
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting audio for story %d: %w", storyID, err)
	}
	return audio, nil
}

func scanAudio(sc scanner) (*Audio, error) {
	var audio Audio
	var voiceID, voiceSettings sql.NullString
	var createdAt string

	err := sc.Scan(
		&audio.ID,
		&audio.StoryID,
		&audio.FileName,
		&audio.FilePath,
		&voiceID,
		&voiceSettings,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning audio: %w", err)
	}

	audio.VoiceID = voiceID.String
	if voiceSettings.Valid && voiceSettings.String != "" {
		audio.VoiceSettings = json.RawMessage(voiceSettings.String)
	}
	audio.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing audio created_at: %w", err)
	}
	return &audio, nil
}
