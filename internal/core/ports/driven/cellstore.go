package driven

import (
	"context"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// CellStore is the durable home of cells, relationships, sidecar files,
// the snapshot journal and recorded conflicts. Reads may run concurrently.
// All writes go through WithTx, which serializes them.
type CellStore interface {
	// Layout returns the project's filesystem layout.
	Layout() domain.ProjectLayout

	// GetCell retrieves a cell's metadata by ID.
	GetCell(ctx context.Context, id domain.CellID) (*domain.Cell, error)

	// GetCellByShortID retrieves a cell by its display id, ignoring case.
	GetCellByShortID(ctx context.Context, shortID string) (*domain.Cell, error)

	// ListCells returns metadata for every cell, oldest first.
	ListCells(ctx context.Context) ([]domain.Cell, error)

	// ListRelationships returns every relationship.
	ListRelationships(ctx context.Context) ([]domain.Relationship, error)

	// ReadContent returns a cell's raw content from wherever it lives.
	ReadContent(ctx context.Context, cell domain.Cell) ([]byte, error)

	// Cursor returns the journal's current sequence, 0 when empty.
	Cursor(ctx context.Context) (int64, error)

	// GetSnapshot retrieves a snapshot by sequence.
	GetSnapshot(ctx context.Context, sequence int64) (*domain.Snapshot, error)

	// GetSnapshotByID retrieves a snapshot by its id.
	GetSnapshotByID(ctx context.Context, id string) (*domain.Snapshot, error)

	// ListSnapshots returns up to limit snapshots, newest first.
	// A limit of 0 returns all of them.
	ListSnapshots(ctx context.Context, limit int) ([]domain.Snapshot, error)

	// ListConflicts returns unresolved conflicts, oldest first.
	ListConflicts(ctx context.Context) ([]domain.Conflict, error)

	// GetConflict retrieves the open conflict for a cell.
	GetConflict(ctx context.Context, id domain.CellID) (*domain.Conflict, error)

	// LeaseFile hands exclusive write ownership of a content file to an
	// external process. Writes to a leased path fail with
	// domain.ErrEditInProgress until release is called.
	LeaseFile(path string) (release func(), err error)

	// WithTx runs fn inside one transaction. If fn returns an error, every
	// metadata row and every file it touched is restored.
	WithTx(ctx context.Context, fn func(tx CellTx) error) error
}

// CellTx is the write surface of a CellStore transaction.
type CellTx interface {
	// GetCell retrieves a cell's metadata inside the transaction.
	GetCell(ctx context.Context, id domain.CellID) (*domain.Cell, error)

	// ReadContent returns a cell's raw content inside the transaction.
	ReadContent(ctx context.Context, cell domain.Cell) ([]byte, error)

	// StartPoints returns every cell flagged as a start point.
	StartPoints(ctx context.Context) ([]domain.Cell, error)

	// ShortIDs returns every short id in use.
	ShortIDs(ctx context.Context) ([]string, error)

	// InsertCell creates a cell, writing its content to the location the
	// metadata names. Returns domain.ErrAlreadyExists on id or short id clashes.
	InsertCell(ctx context.Context, state domain.CellState) (*domain.Cell, error)

	// UpdateCell rewrites a cell's metadata without touching content.
	UpdateCell(ctx context.Context, cell domain.Cell) error

	// WriteContent stores content at the cell's location, recomputes the
	// content hash and persists the cell. cell is updated in place.
	WriteContent(ctx context.Context, cell *domain.Cell, content []byte) error

	// DeleteCell removes a cell, its relationships and any sidecar file
	// the project owns.
	DeleteCell(ctx context.Context, id domain.CellID) error

	// DiscardFile removes a content file the project owns. Missing files are ignored.
	DiscardFile(ctx context.Context, location domain.ContentLocation, path *string) error

	// RelationshipsOf returns relationships where id is either endpoint.
	RelationshipsOf(ctx context.Context, id domain.CellID) ([]domain.Relationship, error)

	// InsertRelationship creates an edge between two existing cells.
	InsertRelationship(ctx context.Context, rel domain.Relationship) error

	// DeleteRelationship removes an edge. Returns domain.ErrNotFound when absent.
	DeleteRelationship(ctx context.Context, from, to domain.CellID) error

	// Cursor returns the journal's current sequence.
	Cursor(ctx context.Context) (int64, error)

	// SetCursor moves the journal cursor.
	SetCursor(ctx context.Context, sequence int64) error

	// MaxSequence returns the highest sequence ever stored, 0 when empty.
	MaxSequence(ctx context.Context) (int64, error)

	// InsertSnapshot stores a snapshot at its assigned sequence.
	InsertSnapshot(ctx context.Context, snap domain.Snapshot) error

	// GetSnapshot retrieves a snapshot by sequence.
	GetSnapshot(ctx context.Context, sequence int64) (*domain.Snapshot, error)

	// SupersedeAfter marks every live snapshot above sequence as unreachable.
	SupersedeAfter(ctx context.Context, sequence int64) error

	// PruneThrough deletes snapshots with sequence <= sequence and returns
	// how many were removed.
	PruneThrough(ctx context.Context, sequence int64) (int64, error)

	// PreviousSequence returns the highest live sequence below before, 0 when none.
	PreviousSequence(ctx context.Context, before int64) (int64, error)

	// NextSequence returns the lowest live sequence above after.
	NextSequence(ctx context.Context, after int64) (int64, bool, error)

	// PutConflict records or replaces the open conflict for a cell.
	PutConflict(ctx context.Context, c domain.Conflict) error

	// DeleteConflict clears a cell's conflict.
	DeleteConflict(ctx context.Context, id domain.CellID) error
}

// TraceStore persists execution traces. Traces are never journaled.
type TraceStore interface {
	// Save stores a trace.
	Save(ctx context.Context, trace domain.ExecutionTrace) error

	// Get retrieves a trace by ID.
	Get(ctx context.Context, id string) (*domain.ExecutionTrace, error)

	// List returns up to limit traces, newest first. 0 returns all.
	List(ctx context.Context, limit int) ([]domain.ExecutionTrace, error)
}
