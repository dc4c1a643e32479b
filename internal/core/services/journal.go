package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/logger"
)

// Journal numbers snapshots and keeps the journal within its retention.
type Journal struct {
	retention int
	now       func() time.Time
}

// NewJournal creates a journal keeping at most retention snapshots.
func NewJournal(retention int) (*Journal, error) {
	if retention < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrRetentionConfig, retention)
	}
	return &Journal{
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Retention returns the number of snapshots kept.
func (j *Journal) Retention() int {
	return j.retention
}

// Append records changes as the next snapshot inside tx. Snapshots beyond
// the cursor become unreachable, the oldest entries past the retention
// are pruned and the cursor moves to the new snapshot.
func (j *Journal) Append(
	ctx context.Context,
	tx driven.CellTx,
	op domain.OperationKind,
	description string,
	changes []domain.Change,
) (*domain.Snapshot, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: snapshot without changes", domain.ErrInvalidInput)
	}
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	cur, err := tx.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	if err := tx.SupersedeAfter(ctx, cur); err != nil {
		return nil, err
	}
	maxSeq, err := tx.MaxSequence(ctx)
	if err != nil {
		return nil, err
	}

	snap := domain.Snapshot{
		ID:          newSnapshotID(),
		Sequence:    maxSeq + 1,
		Timestamp:   j.now(),
		Description: description,
		Operation:   op,
		Changes:     changes,
	}
	if err := tx.InsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	pruned, err := tx.PruneThrough(ctx, snap.Sequence-int64(j.retention))
	if err != nil {
		return nil, err
	}
	if err := tx.SetCursor(ctx, snap.Sequence); err != nil {
		return nil, err
	}

	logger.Debug("journal: #%d %s (%d changes, pruned %d)", snap.Sequence, description, len(changes), pruned)
	return &snap, nil
}

// Load reads a snapshot by sequence.
func (j *Journal) Load(ctx context.Context, store driven.CellStore, sequence int64) (*domain.Snapshot, error) {
	snap, err := store.GetSnapshot(ctx, sequence)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %d: %w", sequence, err)
	}
	return snap, nil
}

// LoadByID reads a snapshot by id.
func (j *Journal) LoadByID(ctx context.Context, store driven.CellStore, id string) (*domain.Snapshot, error) {
	snap, err := store.GetSnapshotByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", id, err)
	}
	return snap, nil
}
