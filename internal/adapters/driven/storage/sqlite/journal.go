package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

const selectSnapshot = `
	SELECT id, sequence, created_at, description, operation, changes, superseded
	FROM snapshots`

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var createdAt, changesJSON string
	var superseded int
	if err := row.Scan(&snap.ID, &snap.Sequence, &createdAt, &snap.Description,
		&snap.Operation, &changesJSON, &superseded); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}

	var err error
	if snap.Timestamp, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(changesJSON), &snap.Changes); err != nil {
		return nil, fmt.Errorf("%w: snapshot %d: %v", domain.ErrCorruptJournal, snap.Sequence, err)
	}
	snap.Superseded = superseded != 0
	return &snap, nil
}

func getSnapshot(ctx context.Context, q querier, sequence int64) (*domain.Snapshot, error) {
	return scanSnapshot(q.QueryRowContext(ctx, selectSnapshot+" WHERE sequence = ?", sequence))
}

func cursor(ctx context.Context, q querier) (int64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, "SELECT cursor FROM journal_state WHERE id = 1").Scan(&seq); err != nil {
		return 0, fmt.Errorf("reading journal cursor: %w", err)
	}
	return seq, nil
}

// Cursor returns the journal's current sequence.
func (s *Store) Cursor(ctx context.Context) (int64, error) {
	return cursor(ctx, s.db)
}

// GetSnapshot retrieves a snapshot by sequence.
func (s *Store) GetSnapshot(ctx context.Context, sequence int64) (*domain.Snapshot, error) {
	return getSnapshot(ctx, s.db, sequence)
}

// GetSnapshotByID retrieves a snapshot by id.
func (s *Store) GetSnapshotByID(ctx context.Context, id string) (*domain.Snapshot, error) {
	return scanSnapshot(s.db.QueryRowContext(ctx, selectSnapshot+" WHERE id = ?", id))
}

// ListSnapshots returns up to limit reachable snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	query := selectSnapshot + " WHERE superseded = 0 ORDER BY sequence DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot //nolint:prealloc // size unknown from query
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snaps, nil
}

// Cursor returns the journal's current sequence.
func (t *tx) Cursor(ctx context.Context) (int64, error) {
	return cursor(ctx, t.sqlTx)
}

// SetCursor moves the journal cursor.
func (t *tx) SetCursor(ctx context.Context, sequence int64) error {
	if _, err := t.sqlTx.ExecContext(ctx, "UPDATE journal_state SET cursor = ? WHERE id = 1", sequence); err != nil {
		return fmt.Errorf("moving journal cursor: %w", err)
	}
	return nil
}

// MaxSequence returns the highest sequence stored, superseded or not.
func (t *tx) MaxSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := t.sqlTx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sequence), 0) FROM snapshots").Scan(&seq); err != nil {
		return 0, fmt.Errorf("reading max sequence: %w", err)
	}
	return seq, nil
}

// InsertSnapshot stores a snapshot at its assigned sequence.
func (t *tx) InsertSnapshot(ctx context.Context, snap domain.Snapshot) error {
	changesJSON, err := json.Marshal(snap.Changes)
	if err != nil {
		return fmt.Errorf("marshalling changes: %w", err)
	}
	_, err = t.sqlTx.ExecContext(ctx, `
		INSERT INTO snapshots (id, sequence, created_at, description, operation, changes, superseded)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, snap.ID, snap.Sequence, formatTime(snap.Timestamp), snap.Description,
		string(snap.Operation), string(changesJSON))
	if err != nil {
		return fmt.Errorf("inserting snapshot %d: %w", snap.Sequence, err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot inside the transaction.
func (t *tx) GetSnapshot(ctx context.Context, sequence int64) (*domain.Snapshot, error) {
	return getSnapshot(ctx, t.sqlTx, sequence)
}

// SupersedeAfter marks snapshots above sequence as unreachable.
func (t *tx) SupersedeAfter(ctx context.Context, sequence int64) error {
	if _, err := t.sqlTx.ExecContext(ctx,
		"UPDATE snapshots SET superseded = 1 WHERE sequence > ? AND superseded = 0", sequence); err != nil {
		return fmt.Errorf("superseding snapshots: %w", err)
	}
	return nil
}

// PruneThrough deletes snapshots at or below sequence.
func (t *tx) PruneThrough(ctx context.Context, sequence int64) (int64, error) {
	res, err := t.sqlTx.ExecContext(ctx, "DELETE FROM snapshots WHERE sequence <= ?", sequence)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return n, nil
}

// PreviousSequence returns the highest live sequence below before.
func (t *tx) PreviousSequence(ctx context.Context, before int64) (int64, error) {
	var seq int64
	err := t.sqlTx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) FROM snapshots WHERE sequence < ? AND superseded = 0",
		before).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("finding previous snapshot: %w", err)
	}
	return seq, nil
}

// NextSequence returns the lowest live sequence above after.
func (t *tx) NextSequence(ctx context.Context, after int64) (int64, bool, error) {
	var seq sql.NullInt64
	err := t.sqlTx.QueryRowContext(ctx,
		"SELECT MIN(sequence) FROM snapshots WHERE sequence > ? AND superseded = 0",
		after).Scan(&seq)
	if err != nil {
		return 0, false, fmt.Errorf("finding next snapshot: %w", err)
	}
	return seq.Int64, seq.Valid, nil
}
