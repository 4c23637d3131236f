// ABOUTME: Bedtime queue operations with dense 1..N positions
// ABOUTME: Mutations run in single transactions; removal rewrites the whole queue

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetQueue returns the queued story ids in playback order
func (s *SQLiteStore) GetQueue(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT story_id FROM queue ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue: %w", err)
	}
	return ids, nil
}

// SetQueue atomically replaces the queue with the given ids at positions
// 1..len. Previously queued ids absent from the list are dropped. On any
// failure the queue keeps its prior contents.
func (s *SQLiteStore) SetQueue(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning queue transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue`); err != nil {
		return fmt.Errorf("clearing queue: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO queue (position, story_id) VALUES (?, ?)`, i+1, id); err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("%w: story %d cannot be queued", ErrConstraint, id)
			}
			return fmt.Errorf("queueing story %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing queue: %w", err)
	}

	s.logger.Debug("replaced queue", "size", len(ids))
	return nil
}

// AppendToQueue adds a story at the tail of the queue. Returns false without
// changing anything when the story is already queued.
func (s *SQLiteStore) AppendToQueue(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning queue transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM queue WHERE story_id = ?`, id).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("checking queue membership: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM queue`).Scan(&next); err != nil {
		return false, fmt.Errorf("finding queue tail: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO queue (position, story_id) VALUES (?, ?)`, next, id); err != nil {
		if isConstraintViolation(err) {
			return false, fmt.Errorf("%w: story %d cannot be queued", ErrConstraint, id)
		}
		return false, fmt.Errorf("appending story %d to queue: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing queue append: %w", err)
	}

	s.logger.Debug("appended to queue", "story_id", id, "position", next)
	return true, nil
}

// RemoveFromQueue removes a story from the queue and compacts the remaining
// entries back to positions 1..N. Returns false when the story was not
// queued.
func (s *SQLiteStore) RemoveFromQueue(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning queue transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE story_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("removing story %d from queue: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking queue removal: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	// Read the survivors fully before issuing writes on this transaction
	rows, err := tx.QueryContext(ctx, `SELECT story_id FROM queue ORDER BY position ASC`)
	if err != nil {
		return false, fmt.Errorf("reading remaining queue: %w", err)
	}
	var remaining []int64
	for rows.Next() {
		var sid int64
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return false, fmt.Errorf("scanning queue entry: %w", err)
		}
		remaining = append(remaining, sid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, fmt.Errorf("iterating queue: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue`); err != nil {
		return false, fmt.Errorf("clearing queue for rewrite: %w", err)
	}
	for i, sid := range remaining {
		if _, err := tx.ExecContext(ctx, `INSERT INTO queue (position, story_id) VALUES (?, ?)`, i+1, sid); err != nil {
			return false, fmt.Errorf("rewriting queue position %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing queue removal: %w", err)
	}

	s.logger.Debug("removed from queue", "story_id", id, "remaining", len(remaining))
	return true, nil
}
