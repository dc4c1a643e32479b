package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

func newTrace(id string, at time.Time) domain.ExecutionTrace {
	return domain.ExecutionTrace{
		ID:        id,
		Timestamp: at,
		Mode:      domain.ExecutionAll,
		Log:       json.RawMessage(`{"steps":1}`),
	}
}

func TestTraceStore_SaveAndGet(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, newTrace("t1", now)))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.JSONEq(t, `{"steps":1}`, string(got.Log))
}

func TestTraceStore_Save_Duplicate(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTrace("t1", time.Now())))
	err := store.Save(ctx, newTrace("t1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTraceStore_Get_NotFound(t *testing.T) {
	store := NewTraceStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTraceStore_List_NewestFirst(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, newTrace("old", base)))
	require.NoError(t, store.Save(ctx, newTrace("new", base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, newTrace("mid", base.Add(time.Minute))))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
