// ABOUTME: JSON export and import of the story collection
// ABOUTME: Sharing state, audio, and the queue stay local; import dedups on fingerprint

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const exportVersion = 1

type exportDoc struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Stories    []*exportStory `json:"stories"`
}

type exportStory struct {
	Text       string    `json:"text"`
	Category   string    `json:"category"`
	Topic      string    `json:"topic,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	IsFavorite bool      `json:"is_favorite,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Export writes the full story collection as a versioned JSON document.
// Share tokens, audio rows, and queue state are deliberately not part of
// the document; exports move stories, not credentials or local files.
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, category, topic, tags, is_favorite, created_at, updated_at
		FROM stories
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("reading stories for export: %w", err)
	}
	defer rows.Close()

	stories := []*exportStory{}
	for rows.Next() {
		var es exportStory
		var topic, tags sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&es.Text, &es.Category, &topic, &tags, &es.IsFavorite, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scanning story for export: %w", err)
		}
		es.Topic = topic.String
		es.Tags, err = unmarshalTags(tags)
		if err != nil {
			return fmt.Errorf("decoding tags for export: %w", err)
		}
		es.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return fmt.Errorf("parsing created_at for export: %w", err)
		}
		es.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return fmt.Errorf("parsing updated_at for export: %w", err)
		}
		stories = append(stories, &es)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating stories for export: %w", err)
	}

	doc := exportDoc{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Stories:    stories,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	s.logger.Info("exported stories", "count", len(stories))
	return nil
}

// Import reads a JSON document produced by Export and inserts the stories it
// does not already hold, keyed by content fingerprint. Original timestamps
// are preserved. Returns the number of stories actually inserted; the whole
// import applies in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, r io.Reader) (int, error) {
	var doc exportDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decoding import: %w", err)
	}
	if doc.Version != exportVersion {
		return 0, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	imported := 0
	seen := make(map[string]bool)
	for _, es := range doc.Stories {
		text := strings.TrimSpace(es.Text)
		if text == "" {
			continue
		}
		fp := Fingerprint(text, es.Category, es.Topic)
		if seen[fp] {
			continue
		}
		seen[fp] = true

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM stories WHERE content_fingerprint = ?`, fp).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("checking story fingerprint: %w", err)
		}

		tagsValue, err := marshalTags(es.Tags)
		if err != nil {
			return 0, err
		}
		createdAt := es.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		updatedAt := es.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stories (text, category, topic, tags, is_favorite, content_fingerprint, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, text, es.Category, nullString(es.Topic), tagsValue, es.IsFavorite, fp,
			createdAt.UTC().Format(time.RFC3339), updatedAt.UTC().Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("importing story: %w", err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}

	s.logger.Info("imported stories", "count", imported, "skipped", len(doc.Stories)-imported)
	return imported, nil
}
