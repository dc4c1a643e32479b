package driving

import (
	"context"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// HistoryService walks the snapshot journal.
type HistoryService interface {
	// Undo reverts the snapshot at the cursor. Returns nil when there is
	// nothing to undo.
	Undo(ctx context.Context) (*domain.Snapshot, error)

	// Redo reapplies the next snapshot. Returns nil when there is nothing to redo.
	Redo(ctx context.Context) (*domain.Snapshot, error)

	// List returns up to limit snapshots, newest first.
	List(ctx context.Context, limit int) ([]domain.Snapshot, error)

	// Position returns the cursor sequence.
	Position(ctx context.Context) (int64, error)
}
