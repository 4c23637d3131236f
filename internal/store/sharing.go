// ABOUTME: Share token lifecycle for stories
// ABOUTME: Tokens are 16 random bytes hex-encoded; only currently shared stories resolve

package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const shareTokenBytes = 16

func generateShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ShareStory marks a story as shared under a fresh token. Re-sharing an
// already shared story rotates the token; the old one stops resolving.
func (s *SQLiteStore) ShareStory(ctx context.Context, id int64) (string, error) {
	token, err := generateShareToken()
	if err != nil {
		return "", err
	}

	now := nowString()
	result, err := s.db.ExecContext(ctx, `
		UPDATE stories
		SET is_shared = 1, share_token = ?, shared_at = ?, updated_at = ?
		WHERE id = ?
	`, token, now, now, id)
	if err != nil {
		if isConstraintViolation(err) {
			return "", fmt.Errorf("%w: share token collision", ErrConstraint)
		}
		return "", fmt.Errorf("sharing story %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("checking share result: %w", err)
	}
	if rows == 0 {
		return "", ErrNotFound
	}

	s.logger.Debug("shared story", "id", id)
	return token, nil
}

// UnshareStory revokes sharing for a story. Returns false when the story was
// not shared or does not exist; unsharing twice is not an error.
func (s *SQLiteStore) UnshareStory(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stories
		SET is_shared = 0, share_token = NULL, shared_at = NULL, updated_at = ?
		WHERE id = ? AND is_shared = 1
	`, nowString(), id)
	if err != nil {
		return false, fmt.Errorf("unsharing story %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking unshare result: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	s.logger.Debug("unshared story", "id", id)
	return true, nil
}

// GetStoryByToken resolves a share token to its story. Revoked or unknown
// tokens report ErrNotFound.
func (s *SQLiteStore) GetStoryByToken(ctx context.Context, token string) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, category, topic, tags, is_favorite, content_fingerprint,
		       is_shared, share_token, shared_at, created_at, updated_at
		FROM stories
		WHERE share_token = ? AND is_shared = 1
	`, token)

	story, err := scanStory(row)
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting story by token: %w", err)
	}
	return story, nil
}

// ListSharedStories returns all currently shared stories, most recently
// shared first
func (s *SQLiteStore) ListSharedStories(ctx context.Context) ([]*Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, category, topic, tags, is_favorite, content_fingerprint,
		       is_shared, share_token, shared_at, created_at, updated_at
		FROM stories
		WHERE is_shared = 1
		ORDER BY shared_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing shared stories: %w", err)
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
		return nil, fmt.Errorf("iterating shared stories: %w", err)
	}
	return stories, nil
}
