package driving

import (
	"context"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// EditOutcome is how an external edit ended.
type EditOutcome string

// Edit outcomes.
const (
	EditUnchanged EditOutcome = "unchanged"
	EditSynced    EditOutcome = "synced"
	EditConflict  EditOutcome = "conflict"
	EditAbandoned EditOutcome = "abandoned"
)

// EditResult reports a finished external edit.
type EditResult struct {
	CellID   domain.CellID
	Outcome  EditOutcome
	Saves    int
	Snapshot *domain.Snapshot
	Conflict *domain.Conflict
	Err      error
}

// EditSession is an external edit in flight.
type EditSession interface {
	// CellID returns the cell being edited.
	CellID() domain.CellID

	// Path returns the file handed to the editor.
	Path() string

	// Wait blocks until the editor exits and the edit is reconciled.
	Wait(ctx context.Context) (EditResult, error)

	// Cancel stops watching and terminates the editor.
	Cancel()
}

// EditService hands cells to external editors and reconciles the result.
type EditService interface {
	// BeginEdit opens a cell in an editor. An empty command falls back to
	// configuration and the environment.
	BeginEdit(ctx context.Context, id domain.CellID, command string) (EditSession, error)

	// Conflicts returns unresolved conflicts.
	Conflicts(ctx context.Context) ([]domain.Conflict, error)

	// ResolveConflict settles a conflict in favour of one side.
	ResolveConflict(ctx context.Context, id domain.CellID, resolution domain.ConflictResolution) error
}
