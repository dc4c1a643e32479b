package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

func insertSnapshots(t *testing.T, store *Store, seqs ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		for _, seq := range seqs {
			snap := domain.Snapshot{
				ID:          "snap-" + string(rune('a'+seq)),
				Sequence:    seq,
				Timestamp:   time.Now(),
				Description: "Create cell",
				Operation:   domain.OperationCreate,
				Changes: []domain.Change{
					domain.NewRelationshipCreated(domain.Relationship{From: "A", To: "B"}),
				},
			}
			if err := tx.InsertSnapshot(ctx, snap); err != nil {
				return err
			}
		}
		return tx.SetCursor(ctx, seqs[len(seqs)-1])
	}))
}

func TestJournal_InsertAndRead(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertSnapshots(t, store, 1, 2, 3)

	cur, err := store.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)

	snap, err := store.GetSnapshot(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationCreate, snap.Operation)
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, domain.ChangeRelationshipCreated, snap.Changes[0].Kind)

	list, err := store.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].Sequence)
	assert.Equal(t, int64(2), list[1].Sequence)

	_, err = store.GetSnapshot(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byID, err := store.GetSnapshotByID(ctx, "snap-c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byID.Sequence)

	_, err = store.GetSnapshotByID(ctx, "snap-z")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJournal_SupersedeAndNavigate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertSnapshots(t, store, 1, 2, 3, 4)

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		require.NoError(t, tx.SupersedeAfter(ctx, 2))

		maxSeq, err := tx.MaxSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), maxSeq)

		prev, err := tx.PreviousSequence(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), prev)

		_, ok, err := tx.NextSequence(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		next, ok, err := tx.NextSequence(ctx, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), next)
		return nil
	}))

	list, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestJournal_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertSnapshots(t, store, 1, 2, 3, 4, 5)

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		n, err := tx.PruneThrough(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		prev, err := tx.PreviousSequence(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(0), prev)
		return nil
	}))

	list, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
