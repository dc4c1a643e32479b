package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

const selectConflict = `
	SELECT cell_id, short_id, kind, artifact_path, external_path, original_hash,
		in_app_hash, external_hash, detected_at
	FROM conflicts`

func scanConflict(row rowScanner) (*domain.Conflict, error) {
	var c domain.Conflict
	var detectedAt string
	if err := row.Scan(&c.CellID, &c.ShortID, &c.Kind, &c.ArtifactPath, &c.ExternalPath,
		&c.OriginalHash, &c.InAppHash, &c.ExternalHash, &detectedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conflict: %w", err)
	}
	var err error
	if c.DetectedAt, err = parseTime(detectedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConflicts returns unresolved conflicts, oldest first.
func (s *Store) ListConflicts(ctx context.Context) ([]domain.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, selectConflict+" ORDER BY detected_at")
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.Conflict //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conflicts: %w", err)
	}
	return conflicts, nil
}

// GetConflict retrieves the open conflict for a cell.
func (s *Store) GetConflict(ctx context.Context, id domain.CellID) (*domain.Conflict, error) {
	return scanConflict(s.db.QueryRowContext(ctx, selectConflict+" WHERE cell_id = ?", string(id)))
}

// PutConflict records or replaces a cell's conflict. Artifact files of a
// replaced conflict are removed with it.
func (t *tx) PutConflict(ctx context.Context, c domain.Conflict) error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("%w: unknown conflict kind %q", domain.ErrInvalidInput, c.Kind)
	}
	if err := t.discardConflictFiles(ctx, c.CellID, c.ArtifactPath, c.ExternalPath); err != nil {
		return err
	}

	_, err := t.sqlTx.ExecContext(ctx, `
		INSERT INTO conflicts (cell_id, short_id, kind, artifact_path, external_path, original_hash,
			in_app_hash, external_hash, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cell_id) DO UPDATE SET
			short_id = excluded.short_id,
			kind = excluded.kind,
			artifact_path = excluded.artifact_path,
			external_path = excluded.external_path,
			original_hash = excluded.original_hash,
			in_app_hash = excluded.in_app_hash,
			external_hash = excluded.external_hash,
			detected_at = excluded.detected_at
	`, string(c.CellID), c.ShortID, string(c.Kind), c.ArtifactPath, c.ExternalPath, c.OriginalHash,
		c.InAppHash, c.ExternalHash, formatTime(c.DetectedAt))
	if err != nil {
		return fmt.Errorf("saving conflict: %w", err)
	}
	return nil
}

// DeleteConflict clears a cell's conflict.
func (t *tx) DeleteConflict(ctx context.Context, id domain.CellID) error {
	if _, err := t.sqlTx.ExecContext(ctx, "DELETE FROM conflicts WHERE cell_id = ?", string(id)); err != nil {
		return fmt.Errorf("deleting conflict: %w", err)
	}
	return nil
}

// discardConflict drops a cell's conflict together with its artifact files.
func (t *tx) discardConflict(ctx context.Context, id domain.CellID) error {
	if err := t.discardConflictFiles(ctx, id); err != nil {
		return err
	}
	return t.DeleteConflict(ctx, id)
}

// discardConflictFiles removes the artifact files of a cell's recorded
// conflict, skipping any path listed in keep.
func (t *tx) discardConflictFiles(ctx context.Context, id domain.CellID, keep ...string) error {
	old, err := scanConflict(t.sqlTx.QueryRowContext(ctx, selectConflict+" WHERE cell_id = ?", string(id)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, path := range []string{old.ArtifactPath, old.ExternalPath} {
		if path == "" || slices.Contains(keep, path) {
			continue
		}
		if err := t.removeFile(path); err != nil {
			return err
		}
	}
	return nil
}
