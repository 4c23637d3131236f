// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Owns schema creation, additive migrations, and the fingerprint backfill

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/fable-vault/internal/dedupe"
)

// Recently ingested fingerprints are remembered in-process so duplicate
// submission bursts skip straight to the existing row. The database
// unique index stays authoritative.
const (
	seenFingerprintTTL = 15 * time.Minute
	seenFingerprintCap = 1024
)

// InitState tracks schema initialization progress. There is no transition
// back from Ready.
type InitState int32

const (
	StateUninitialized InitState = iota
	StateInitializing
	StateReady
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db       *sql.DB
	path     string
	audioDir string
	logger   *slog.Logger
	seen     *dedupe.Cache

	initOnce sync.Once
	initErr  error
	state    atomic.Int32
}

// NewSQLiteStore opens a SQLite store at the given path. Parent directories
// and the audio directory are created if needed. Initialize must be called
// before any other operation.
func NewSQLiteStore(path, audioDir string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if audioDir != "" {
		if err := os.MkdirAll(audioDir, 0755); err != nil {
			return nil, fmt.Errorf("creating audio directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{
		db:       db,
		path:     path,
		audioDir: audioDir,
		logger:   logger,
		seen:     dedupe.New(seenFingerprintTTL, seenFingerprintCap),
	}, nil
}

// Initialize creates the schema, applies additive migrations, and runs the
// one-time fingerprint backfill. It is idempotent across process restarts;
// within a process, concurrent calls serialize and later calls return the
// first outcome.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.state.Store(int32(StateInitializing))
		s.initErr = s.initialize(ctx)
		if s.initErr == nil {
			s.state.Store(int32(StateReady))
		}
	})
	return s.initErr
}

// State reports the current initialization state
func (s *SQLiteStore) State() InitState {
	return InitState(s.state.Load())
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := s.createTriggers(ctx); err != nil {
		return fmt.Errorf("creating index triggers: %w", err)
	}
	if err := s.backfillFingerprints(ctx); err != nil {
		return fmt.Errorf("backfilling fingerprints: %w", err)
	}
	s.logger.Info("store initialized", "path", s.path)
	return nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS stories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			category TEXT NOT NULL,
			topic TEXT,
			tags TEXT,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			content_fingerprint TEXT,
			is_shared INTEGER NOT NULL DEFAULT 0,
			share_token TEXT,
			shared_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_stories_category ON stories(category);
		CREATE INDEX IF NOT EXISTS idx_stories_created ON stories(created_at DESC);

		CREATE TABLE IF NOT EXISTS audio (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			story_id INTEGER NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			voice_id TEXT,
			voice_settings TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audio_story ON audio(story_id);

		CREATE TABLE IF NOT EXISTS queue (
			position INTEGER PRIMARY KEY CHECK (position >= 1),
			story_id INTEGER NOT NULL UNIQUE REFERENCES stories(id) ON DELETE CASCADE
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS stories_fts USING fts5(
			text,
			category,
			topic,
			content='stories',
			content_rowid='id'
		);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// Each step is individually guarded: an already-present column or index is
// logged and skipped, any other failure aborts initialization.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('stories') WHERE name = 'tags'`,
			apply:  `ALTER TABLE stories ADD COLUMN tags TEXT`,
			column: "tags",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('stories') WHERE name = 'content_fingerprint'`,
			apply:  `ALTER TABLE stories ADD COLUMN content_fingerprint TEXT`,
			column: "content_fingerprint",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('stories') WHERE name = 'is_shared'`,
			apply:  `ALTER TABLE stories ADD COLUMN is_shared INTEGER NOT NULL DEFAULT 0`,
			column: "is_shared",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('stories') WHERE name = 'share_token'`,
			apply:  `ALTER TABLE stories ADD COLUMN share_token TEXT`,
			column: "share_token",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('stories') WHERE name = 'shared_at'`,
			apply:  `ALTER TABLE stories ADD COLUMN shared_at TEXT`,
			column: "shared_at",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('audio') WHERE name = 'voice_settings'`,
			apply:  `ALTER TABLE audio ADD COLUMN voice_settings TEXT`,
			column: "voice_settings",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRowContext(ctx, m.check).Scan(&exists)
		if err == nil {
			s.logger.Debug("migration already present", "column", m.column)
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking %s column: %w", m.column, err)
		}
		if _, err := s.db.ExecContext(ctx, m.apply); err != nil {
			if isAlreadyPresent(err) {
				s.logger.Debug("migration already present", "column", m.column)
				continue
			}
			return fmt.Errorf("adding %s column: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}

	// Unique indexes land after the columns they cover exist
	indexes := `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_stories_fingerprint ON stories(content_fingerprint);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_stories_share_token ON stories(share_token);
	`
	if _, err := s.db.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("creating unique indexes: %w", err)
	}

	return nil
}

// createTriggers keeps the search index synchronized with story mutations
func (s *SQLiteStore) createTriggers(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='trigger' AND name='stories_fts_insert'`,
	).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking triggers: %w", err)
	}

	triggers := `
		CREATE TRIGGER stories_fts_insert AFTER INSERT ON stories BEGIN
			INSERT INTO stories_fts(rowid, text, category, topic)
			VALUES (new.id, new.text, new.category, new.topic);
		END;

		CREATE TRIGGER stories_fts_delete AFTER DELETE ON stories BEGIN
			INSERT INTO stories_fts(stories_fts, rowid, text, category, topic)
			VALUES ('delete', old.id, old.text, old.category, old.topic);
		END;

		CREATE TRIGGER stories_fts_update AFTER UPDATE ON stories BEGIN
			INSERT INTO stories_fts(stories_fts, rowid, text, category, topic)
			VALUES ('delete', old.id, old.text, old.category, old.topic);
			INSERT INTO stories_fts(rowid, text, category, topic)
			VALUES (new.id, new.text, new.category, new.topic);
		END;
	`
	if _, err := s.db.ExecContext(ctx, triggers); err != nil {
		return err
	}

	// Rows inserted before the triggers existed are not indexed yet
	if _, err := s.db.ExecContext(ctx, `INSERT INTO stories_fts(stories_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuilding search index: %w", err)
	}

	s.logger.Info("created search index triggers")
	return nil
}

// backfillFingerprints fills the content_fingerprint column for legacy rows
// and purges exact-duplicate rows, keeping the first-seen one. Runs only
// when at least one row still has a null fingerprint, and applies all of its
// work in a single transaction.
func (s *SQLiteStore) backfillFingerprints(ctx context.Context) error {
	var pending int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories WHERE content_fingerprint IS NULL`).Scan(&pending); err != nil {
		return fmt.Errorf("checking for pending backfill: %w", err)
	}
	if pending == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning backfill transaction: %w", err)
	}
	defer tx.Rollback()

	taken := make(map[string]bool)
	existing, err := tx.QueryContext(ctx, `SELECT content_fingerprint FROM stories WHERE content_fingerprint IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("reading existing fingerprints: %w", err)
	}
	for existing.Next() {
		var fp string
		if err := existing.Scan(&fp); err != nil {
			existing.Close()
			return fmt.Errorf("scanning fingerprint: %w", err)
		}
		taken[fp] = true
	}
	if err := existing.Err(); err != nil {
		existing.Close()
		return fmt.Errorf("iterating fingerprints: %w", err)
	}
	existing.Close()

	type legacyRow struct {
		id       int64
		text     string
		category string
		topic    sql.NullString
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, text, category, topic
		FROM stories
		WHERE content_fingerprint IS NULL
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("reading legacy stories: %w", err)
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.text, &r.category, &r.topic); err != nil {
			rows.Close()
			return fmt.Errorf("scanning legacy story: %w", err)
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating legacy stories: %w", err)
	}
	rows.Close()

	var filled, purged int
	for _, r := range legacy {
		fp := Fingerprint(r.text, r.category, r.topic.String)
		if taken[fp] {
			// Later duplicate of an already-fingerprinted row; cascade
			// removes its audio and queue entries
			if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, r.id); err != nil {
				return fmt.Errorf("purging duplicate story %d: %w", r.id, err)
			}
			purged++
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE stories SET content_fingerprint = ? WHERE id = ?`, fp, r.id); err != nil {
			return fmt.Errorf("backfilling story %d: %w", r.id, err)
		}
		taken[fp] = true
		filled++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing backfill: %w", err)
	}

	s.logger.Info("backfilled content fingerprints", "filled", filled, "purged", purged)
	return nil
}

// Stats returns summary counts over the vault
func (s *SQLiteStore) Stats(ctx context.Context) (*VaultStats, error) {
	stats := &VaultStats{}
	counts := []struct {
		dst   *int
		query string
	}{
		{&stats.Stories, `SELECT COUNT(*) FROM stories`},
		{&stats.Favorites, `SELECT COUNT(*) FROM stories WHERE is_favorite = 1`},
		{&stats.Shared, `SELECT COUNT(*) FROM stories WHERE is_shared = 1`},
		{&stats.Queued, `SELECT COUNT(*) FROM queue`},
		{&stats.Narrations, `SELECT COUNT(*) FROM audio`},
		{&stats.AwaitingAudio, `SELECT COUNT(*) FROM stories s WHERE NOT EXISTS (SELECT 1 FROM audio a WHERE a.story_id = s.id)`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting vault stats: %w", err)
		}
	}
	return stats, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// isAlreadyPresent checks if the error means a column or index already exists
func isAlreadyPresent(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate column name") ||
		strings.Contains(errStr, "already exists")
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nowString returns the current UTC time in the stored timestamp format
func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// marshalTags serializes tags for storage; empty tag lists store as NULL
func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	return string(data), nil
}

// unmarshalTags decodes the stored tag list; NULL decodes to nil
func unmarshalTags(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanStory scans the canonical story column list:
// id, text, category, topic, tags, is_favorite, content_fingerprint,
// is_shared, share_token, shared_at, created_at, updated_at
func scanStory(sc scanner) (*Story, error) {
	var story Story
	var topic, tags, fingerprint, shareToken, sharedAt sql.NullString
	var createdAt, updatedAt string

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
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning story: %w", err)
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

	return &story, nil
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
