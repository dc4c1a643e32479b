package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var _ driven.CellTx = (*tx)(nil)

// fileBackup is a file's state before the transaction first touched it.
type fileBackup struct {
	path    string
	data    []byte
	existed bool
}

// tx implements driven.CellTx. Every file it writes or removes is backed
// up first so a rollback can put the filesystem back.
type tx struct {
	store    *Store
	sqlTx    *sql.Tx
	backups  []fileBackup
	backedUp map[string]bool
}

// GetCell retrieves a cell inside the transaction.
func (t *tx) GetCell(ctx context.Context, id domain.CellID) (*domain.Cell, error) {
	return getCell(ctx, t.sqlTx, id)
}

// ReadContent returns a cell's content as the transaction sees it.
func (t *tx) ReadContent(ctx context.Context, cell domain.Cell) ([]byte, error) {
	return t.store.readContent(ctx, cell)
}

// StartPoints returns every cell flagged as a start point.
func (t *tx) StartPoints(ctx context.Context) ([]domain.Cell, error) {
	return listCells(ctx, t.sqlTx, selectCell+" WHERE is_start_point = 1 ORDER BY id")
}

// ShortIDs returns every short id in use.
func (t *tx) ShortIDs(ctx context.Context) ([]string, error) {
	rows, err := t.sqlTx.QueryContext(ctx, "SELECT short_id FROM cells")
	if err != nil {
		return nil, fmt.Errorf("querying short ids: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning short id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating short ids: %w", err)
	}
	return ids, nil
}

// InsertCell creates a cell and writes its content.
func (t *tx) InsertCell(ctx context.Context, state domain.CellState) (*domain.Cell, error) {
	cell := state.Cell.Clone()
	cell.Children = nil

	var exists int
	err := t.sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cells WHERE id = ? OR short_id = ?",
		string(cell.ID), domain.NormalizeShortID(cell.ShortID)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking cell %s: %w", cell.ID, err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("cell %s (%s): %w", cell.ID, cell.ShortID, domain.ErrAlreadyExists)
	}

	if err := t.placeContent(&cell, state.Content); err != nil {
		return nil, err
	}
	if err := cell.Validate(); err != nil {
		return nil, err
	}

	_, err = t.sqlTx.ExecContext(ctx, `
		INSERT INTO cells (id, short_id, name, cell_type, x, y, width, height, location,
			inline_text, path, summary, content_hash, parent_id, split_direction,
			is_start_point, preview_mode, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cellArgs(&cell)...)
	if err != nil {
		return nil, fmt.Errorf("inserting cell %s: %w", cell.ID, err)
	}
	return &cell, nil
}

// UpdateCell rewrites a cell's row as given.
func (t *tx) UpdateCell(ctx context.Context, cell domain.Cell) error {
	if err := cell.Validate(); err != nil {
		return err
	}
	args := cellArgs(&cell)
	res, err := t.sqlTx.ExecContext(ctx, `
		UPDATE cells SET short_id = ?, name = ?, cell_type = ?, x = ?, y = ?, width = ?, height = ?,
			location = ?, inline_text = ?, path = ?, summary = ?, content_hash = ?, parent_id = ?,
			split_direction = ?, is_start_point = ?, preview_mode = ?, created_at = ?, modified_at = ?
		WHERE id = ?
	`, append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("updating cell %s: %w", cell.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating cell %s: %w", cell.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("cell %s: %w", cell.ID, domain.ErrNotFound)
	}
	return nil
}

// WriteContent stores content at the cell's location and persists the cell.
func (t *tx) WriteContent(ctx context.Context, cell *domain.Cell, content []byte) error {
	if err := t.placeContent(cell, content); err != nil {
		return err
	}
	return t.UpdateCell(ctx, *cell)
}

// DeleteCell removes a cell. Relationships go with it through the
// foreign key cascade, and an open conflict is dropped with its files.
func (t *tx) DeleteCell(ctx context.Context, id domain.CellID) error {
	cell, err := t.GetCell(ctx, id)
	if err != nil {
		return err
	}
	if err := t.discardConflict(ctx, id); err != nil {
		return err
	}
	if _, err := t.sqlTx.ExecContext(ctx, "DELETE FROM cells WHERE id = ?", string(id)); err != nil {
		return fmt.Errorf("deleting cell %s: %w", id, err)
	}
	return t.DiscardFile(ctx, cell.Location, cell.Path)
}

// DiscardFile removes a file the project owns.
func (t *tx) DiscardFile(_ context.Context, location domain.ContentLocation, path *string) error {
	if !t.store.layout.OwnsFile(location) {
		return nil
	}
	resolved, err := t.store.layout.ResolvePath(location, path)
	if err != nil {
		return err
	}
	return t.removeFile(resolved)
}

// RelationshipsOf returns relationships touching id.
func (t *tx) RelationshipsOf(ctx context.Context, id domain.CellID) ([]domain.Relationship, error) {
	return listRelationships(ctx, t.sqlTx, `
		SELECT from_id, to_id, created_at FROM relationships
		WHERE from_id = ? OR to_id = ?
		ORDER BY from_id, to_id
	`, string(id), string(id))
}

// InsertRelationship creates an edge between two existing cells.
func (t *tx) InsertRelationship(ctx context.Context, rel domain.Relationship) error {
	if rel.From == rel.To {
		return domain.ErrSelfReference
	}
	for _, id := range []domain.CellID{rel.From, rel.To} {
		if _, err := t.GetCell(ctx, id); err != nil {
			return fmt.Errorf("relationship endpoint %s: %w", id, err)
		}
	}

	var exists int
	err := t.sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM relationships WHERE from_id = ? AND to_id = ?",
		string(rel.From), string(rel.To)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking relationship: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("relationship %s -> %s: %w", rel.From, rel.To, domain.ErrAlreadyExists)
	}

	_, err = t.sqlTx.ExecContext(ctx,
		"INSERT INTO relationships (from_id, to_id, created_at) VALUES (?, ?, ?)",
		string(rel.From), string(rel.To), formatTime(rel.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting relationship: %w", err)
	}
	return nil
}

// DeleteRelationship removes an edge.
func (t *tx) DeleteRelationship(ctx context.Context, from, to domain.CellID) error {
	res, err := t.sqlTx.ExecContext(ctx,
		"DELETE FROM relationships WHERE from_id = ? AND to_id = ?", string(from), string(to))
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("relationship %s -> %s: %w", from, to, domain.ErrNotFound)
	}
	return nil
}

// placeContent writes content where the cell's location says and updates
// the cell's inline text and hash to match.
func (t *tx) placeContent(cell *domain.Cell, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	if cell.Location == domain.LocationInline {
		text := string(content)
		cell.InlineText = &text
		cell.Path = nil
	} else {
		path, err := t.store.layout.ResolvePath(cell.Location, cell.Path)
		if err != nil {
			return err
		}
		if err := t.writeFile(path, content); err != nil {
			return err
		}
		cell.InlineText = nil
	}
	cell.ContentHash = domain.HashContent(content)
	return nil
}

// backup records a file's current state the first time the transaction touches it.
func (t *tx) backup(path string) error {
	if t.backedUp[path] {
		return nil
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		t.backups = append(t.backups, fileBackup{path: path, data: data, existed: true})
	case errors.Is(err, fs.ErrNotExist):
		t.backups = append(t.backups, fileBackup{path: path})
	default:
		return domain.NewIOError("backing up", path, err)
	}
	t.backedUp[path] = true
	return nil
}

func (t *tx) writeFile(path string, content []byte) error {
	if t.store.isLeased(path) {
		return fmt.Errorf("writing %s: %w", path, domain.ErrEditInProgress)
	}
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, content) {
		return nil
	}
	if err := t.backup(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return domain.NewIOError("creating directory", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return domain.NewIOError("writing", path, err)
	}
	return nil
}

func (t *tx) removeFile(path string) error {
	if t.store.isLeased(path) {
		return fmt.Errorf("removing %s: %w", path, domain.ErrEditInProgress)
	}
	if err := t.backup(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewIOError("removing", path, err)
	}
	return nil
}

// restoreFiles undoes file writes in reverse order after a rollback.
func (t *tx) restoreFiles() {
	for i := len(t.backups) - 1; i >= 0; i-- {
		b := t.backups[i]
		var err error
		if b.existed {
			err = atomic.WriteFile(b.path, bytes.NewReader(b.data))
		} else if rmErr := os.Remove(b.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = rmErr
		}
		if err != nil {
			logger.Error("restoring %s after rollback: %v", b.path, err)
		}
	}
}
