// Package store provides persistent storage for the story vault using SQLite.
//
// # Architecture
//
// A single Store interface covers the whole persistence surface:
//
//   - Story lifecycle: ingest with content dedup, fetch, list, update,
//     favorite, delete with audio-file cleanup
//   - Audio: narration rows per story; only the newest one surfaces
//   - Search: ranked FTS5 lookup with a substring fallback
//   - Queue: dense-position bedtime playlist
//   - Sharing: random token grants read access to one story
//   - Maintenance: seed, stats, JSON export/import
//
// SQLiteStore implements the interface in one struct. Construct it with
// NewSQLiteStore and call Initialize before anything else; initialization
// creates the schema, applies additive migrations, installs the FTS
// triggers, and backfills fingerprints for legacy rows.
//
// # Data Models
//
//   - Story: text plus category, topic, tags, favorite and sharing state,
//     and a content fingerprint unique across the vault
//   - Audio: a narration file reference owned by one story
//   - StoryWithAudio: a story joined with its most recent narration
//   - SearchResult: a story, its narration, and an optional relevance rank
//
// # SQLite Configuration
//
// Pragmas ride on the DSN so every pooled connection gets them:
//
//	?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)
//
// Foreign keys must be on: audio rows and queue entries cascade away with
// their story.
//
// # Error Handling
//
//   - ErrNotFound: no story matches the id or token
//   - ErrInvalidQuery: empty or over-long search input; the search surface
//     converts it to an empty result set instead of failing
//   - ErrConstraint: a uniqueness or reference constraint was violated
//     outside the normal dedup path
//
// All methods accept context.Context.
//
// # Testing
//
// Point NewSQLiteStore at a file under t.TempDir(); each test gets an
// isolated vault and Initialize runs the full schema path.
package store
