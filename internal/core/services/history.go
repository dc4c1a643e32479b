package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService moves the journal cursor. Undo applies the inverse of the
// snapshot at the cursor; redo re-applies the next live snapshot.
type HistoryService struct {
	store   driven.CellStore
	journal *Journal
	cache   *LazyCache
}

// NewHistoryService creates a history service. cache may be nil.
func NewHistoryService(store driven.CellStore, journal *Journal, cache *LazyCache) *HistoryService {
	return &HistoryService{store: store, journal: journal, cache: cache}
}

// Undo reverts the snapshot at the cursor.
func (s *HistoryService) Undo(ctx context.Context) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.store.WithTx(ctx, func(tx driven.CellTx) error {
		cur, err := tx.Cursor(ctx)
		if err != nil {
			return err
		}
		if cur == 0 {
			return nil
		}
		if snap, err = tx.GetSnapshot(ctx, cur); err != nil {
			return fmt.Errorf("loading snapshot %d: %w", cur, err)
		}
		if err := applyChanges(ctx, tx, snap.Changes, false); err != nil {
			return fmt.Errorf("undoing %q: %w", snap.Description, err)
		}
		prev, err := tx.PreviousSequence(ctx, cur)
		if err != nil {
			return err
		}
		return tx.SetCursor(ctx, prev)
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	logger.Debug("history: undid #%d %s", snap.Sequence, snap.Description)
	refreshCache(ctx, s.cache, snap)
	return snap, nil
}

// Redo re-applies the snapshot after the cursor.
func (s *HistoryService) Redo(ctx context.Context) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.store.WithTx(ctx, func(tx driven.CellTx) error {
		cur, err := tx.Cursor(ctx)
		if err != nil {
			return err
		}
		next, ok, err := tx.NextSequence(ctx, cur)
		if err != nil || !ok {
			return err
		}
		if snap, err = tx.GetSnapshot(ctx, next); err != nil {
			return fmt.Errorf("loading snapshot %d: %w", next, err)
		}
		if err := applyChanges(ctx, tx, snap.Changes, true); err != nil {
			return fmt.Errorf("redoing %q: %w", snap.Description, err)
		}
		return tx.SetCursor(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	logger.Debug("history: redid #%d %s", snap.Sequence, snap.Description)
	refreshCache(ctx, s.cache, snap)
	return snap, nil
}

// List returns up to limit live snapshots, newest first.
func (s *HistoryService) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = s.journal.Retention()
	}
	return s.store.ListSnapshots(ctx, limit)
}

// Position returns the cursor.
func (s *HistoryService) Position(ctx context.Context) (int64, error) {
	return s.store.Cursor(ctx)
}
