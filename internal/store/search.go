// ABOUTME: Ranked and substring search over stories
// ABOUTME: FTS5 term index first, silent fallback to a case-insensitive substring scan

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// maxSearchResults caps every search regardless of the caller's limit
	maxSearchResults = 50
	// maxQueryLen guards against pathological query inputs
	maxQueryLen = 1000
)

// SearchStories finds stories matching the query. With useIndex set the
// ranked term index is consulted first; an empty sanitized query, zero
// index rows, or an index error all degrade silently to the substring
// scan. Empty or over-long queries yield an empty result set, never an
// error.
func (s *SQLiteStore) SearchStories(ctx context.Context, query string, limit int, useIndex bool) ([]*SearchResult, error) {
	if err := validateQuery(query); err != nil {
		s.logger.Debug("rejected search query", "error", err)
		return []*SearchResult{}, nil
	}
	limit = clampLimit(limit)

	if useIndex {
		sanitized := sanitizeQuery(query)
		if sanitized != "" {
			results, err := s.searchIndexed(ctx, sanitized, limit)
			if err != nil {
				s.logger.Debug("indexed search failed, falling back", "error", err)
			} else if len(results) > 0 {
				return results, nil
			}
		}
	}

	return s.searchSubstring(ctx, query, limit)
}

// SearchStoriesByTitle matches the query as a substring of category or topic
func (s *SQLiteStore) SearchStoriesByTitle(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if err := validateQuery(query); err != nil {
		s.logger.Debug("rejected title search query", "error", err)
		return []*SearchResult{}, nil
	}
	limit = clampLimit(limit)

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.text, s.category, s.topic, s.tags, s.is_favorite, s.content_fingerprint,
		       s.is_shared, s.share_token, s.shared_at, s.created_at, s.updated_at,
		       a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at,
		       NULL AS rank
		FROM stories s
		LEFT JOIN audio a ON a.story_id = s.id
		WHERE LOWER(s.category) LIKE LOWER(?) ESCAPE '\'
		   OR LOWER(COALESCE(s.topic, '')) LIKE LOWER(?) ESCAPE '\'
		ORDER BY s.created_at DESC, s.id DESC, a.created_at DESC, a.id DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching titles: %w", err)
	}
	return collapseSearchRows(rows)
}

// SearchStoriesByContent matches the query as a substring of the story body
func (s *SQLiteStore) SearchStoriesByContent(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if err := validateQuery(query); err != nil {
		s.logger.Debug("rejected content search query", "error", err)
		return []*SearchResult{}, nil
	}
	return s.searchSubstring(ctx, query, clampLimit(limit))
}

// searchIndexed runs a ranked FTS5 query. Lower rank means more relevant.
func (s *SQLiteStore) searchIndexed(ctx context.Context, sanitized string, limit int) ([]*SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.text, s.category, s.topic, s.tags, s.is_favorite, s.content_fingerprint,
		       s.is_shared, s.share_token, s.shared_at, s.created_at, s.updated_at,
		       a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at,
		       fts.rank
		FROM stories_fts fts
		JOIN stories s ON s.id = fts.rowid
		LEFT JOIN audio a ON a.story_id = s.id
		WHERE stories_fts MATCH ?
		ORDER BY fts.rank ASC, s.created_at DESC, s.id DESC, a.created_at DESC, a.id DESC
		LIMIT ?
	`, buildMatchQuery(sanitized), limit)
	if err != nil {
		return nil, fmt.Errorf("indexed search: %w", err)
	}
	return collapseSearchRows(rows)
}

// searchSubstring is the fallback scan over story bodies
func (s *SQLiteStore) searchSubstring(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.text, s.category, s.topic, s.tags, s.is_favorite, s.content_fingerprint,
		       s.is_shared, s.share_token, s.shared_at, s.created_at, s.updated_at,
		       a.id, a.story_id, a.file_name, a.file_path, a.voice_id, a.voice_settings, a.created_at,
		       NULL AS rank
		FROM stories s
		LEFT JOIN audio a ON a.story_id = s.id
		WHERE LOWER(s.text) LIKE LOWER(?) ESCAPE '\'
		ORDER BY s.created_at DESC, s.id DESC, a.created_at DESC, a.id DESC
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	return collapseSearchRows(rows)
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if len(query) > maxQueryLen {
		return fmt.Errorf("%w: query exceeds %d bytes", ErrInvalidQuery, maxQueryLen)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxSearchResults {
		return maxSearchResults
	}
	return limit
}

// sanitizeQuery strips everything that is not a letter, digit, or space and
// collapses the remaining whitespace. The result may be empty.
func sanitizeQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// buildMatchQuery quotes each term so FTS5 treats it as a plain token
// rather than query syntax
func buildMatchQuery(sanitized string) string {
	terms := strings.Fields(sanitized)
	for i, term := range terms {
		terms[i] = `"` + term + `"`
	}
	return strings.Join(terms, " ")
}

// escapeLike escapes LIKE wildcards so the query matches literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// collapseSearchRows reduces a story/audio join to one result per story.
// Rows for the same story are adjacent, newest audio first, so the first
// row seen wins.
func collapseSearchRows(rows *sql.Rows) ([]*SearchResult, error) {
	defer rows.Close()

	results := []*SearchResult{}
	for rows.Next() {
		result, err := scanSearchRow(rows)
		if err != nil {
			return nil, err
		}
		if n := len(results); n > 0 && results[n-1].Story.ID == result.Story.ID {
			continue
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// scanSearchRow scans the canonical story columns, the nullable audio join
// columns, and the trailing rank column
func scanSearchRow(sc scanner) (*SearchResult, error) {
	var story Story
	var topic, tags, fingerprint, shareToken, sharedAt sql.NullString
	var createdAt, updatedAt string
	var audioID, audioStoryID sql.NullInt64
	var fileName, filePath, voiceID, voiceSettings, audioCreatedAt sql.NullString
	var rank sql.NullFloat64

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
		&rank,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning search result: %w", err)
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

	result := &SearchResult{Story: &story}
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
		result.Audio = audio
	}
	if rank.Valid {
		result.Rank = &rank.Float64
	}
	return result, nil
}
