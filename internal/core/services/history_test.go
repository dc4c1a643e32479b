package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryService_EmptyJournalIsNoOp(t *testing.T) {
	env := setupEnv(t, 50)
	ctx := context.Background()

	snap, err := env.history.Undo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = env.history.Redo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	assert.Equal(t, int64(0), env.cursor(t))
}

func TestHistoryService_RedoAtTailIsNoOp(t *testing.T) {
	env := setupEnv(t, 50)
	env.createText(t, "a")

	snap, err := env.history.Redo(context.Background())

	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, int64(1), env.cursor(t))
}

func TestHistoryService_NewOperationDropsRedo(t *testing.T) {
	env := setupEnv(t, 50)
	ctx := context.Background()
	cell := env.createText(t, "v1")
	_, err := env.cells.UpdateContent(ctx, cell.ID, []byte("v2"))
	require.NoError(t, err)

	_, err = env.history.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.cursor(t))

	_, err = env.cells.UpdateContent(ctx, cell.ID, []byte("v3"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), env.cursor(t))

	snap, err := env.history.Redo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, "v3", env.content(t, cell.ID))

	snaps, err := env.history.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(3), snaps[0].Sequence)
	assert.Equal(t, int64(1), snaps[1].Sequence)

	// Undo skips the abandoned branch.
	_, err = env.history.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", env.content(t, cell.ID))
	assert.Equal(t, int64(1), env.cursor(t))
}

func TestHistoryService_RetentionPrunesOldest(t *testing.T) {
	env := setupEnv(t, 3)
	ctx := context.Background()
	cell := env.createText(t, "v0")
	for i := 1; i <= 4; i++ {
		_, err := env.cells.UpdateContent(ctx, cell.ID, []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}

	snaps, err := env.history.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(5), snaps[0].Sequence)
	assert.Equal(t, int64(3), snaps[2].Sequence)

	for range 3 {
		snap, err := env.history.Undo(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap)
	}
	assert.Equal(t, "v1", env.content(t, cell.ID))
	assert.Equal(t, int64(0), env.cursor(t))

	// History before the retained window is gone.
	snap, err := env.history.Undo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = env.history.Redo(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.Sequence)
	assert.Equal(t, "v2", env.content(t, cell.ID))
}

func TestHistoryService_UndoRefreshesCache(t *testing.T) {
	env := setupEnv(t, 50)
	ctx := context.Background()
	cell := env.createText(t, "before")
	_, err := env.cells.UpdateContent(ctx, cell.ID, []byte("after"))
	require.NoError(t, err)

	data, err := env.cache.Content(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", string(data))

	_, err = env.history.Undo(ctx)
	require.NoError(t, err)

	data, err = env.cache.Content(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))

	_, err = env.history.Undo(ctx)
	require.NoError(t, err)
	_, err = env.cache.Get(cell.ID)
	assert.Error(t, err)
}

func TestHistoryService_List_Limit(t *testing.T) {
	env := setupEnv(t, 50)
	for range 5 {
		env.createText(t, "x")
	}

	snaps, err := env.history.List(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(5), snaps[0].Sequence)
	assert.Contains(t, snaps[0].Description, "Create text cell")
}
