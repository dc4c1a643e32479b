package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

// testEnv wires the services against a real store in a temp project.
type testEnv struct {
	store   *sqlite.Store
	journal *Journal
	cache   *LazyCache
	cells   *CellService
	history *HistoryService
}

func setupEnv(t *testing.T, retention int) *testEnv {
	t.Helper()

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "board.cells"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	journal, err := NewJournal(retention)
	require.NoError(t, err)

	cache := NewLazyCache(store, 100)
	require.NoError(t, cache.Load(context.Background()))

	return &testEnv{
		store:   store,
		journal: journal,
		cache:   cache,
		cells:   NewCellService(store, journal, cache),
		history: NewHistoryService(store, journal, cache),
	}
}

func (e *testEnv) createText(t *testing.T, content string) *domain.Cell {
	t.Helper()
	cell, err := e.cells.CreateCell(context.Background(), driving.CreateCellRequest{
		Type:    domain.CellTypeText,
		Bounds:  domain.Rectangle{Width: 100, Height: 50},
		Content: []byte(content),
	})
	require.NoError(t, err)
	return cell
}

func (e *testEnv) content(t *testing.T, id domain.CellID) string {
	t.Helper()
	cell, err := e.store.GetCell(context.Background(), id)
	require.NoError(t, err)
	data, err := e.store.ReadContent(context.Background(), *cell)
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) cursor(t *testing.T) int64 {
	t.Helper()
	cur, err := e.history.Position(context.Background())
	require.NoError(t, err)
	return cur
}

// projectState is everything undo must restore exactly.
type projectState struct {
	Cells         []domain.Cell
	Contents      map[domain.CellID]string
	Relationships []domain.Relationship
}

func (e *testEnv) state(t *testing.T) projectState {
	t.Helper()
	ctx := context.Background()

	cells, err := e.store.ListCells(ctx)
	require.NoError(t, err)
	rels, err := e.store.ListRelationships(ctx)
	require.NoError(t, err)

	contents := make(map[domain.CellID]string, len(cells))
	for _, c := range cells {
		data, err := e.store.ReadContent(ctx, c)
		require.NoError(t, err)
		contents[c.ID] = string(data)
	}
	return projectState{Cells: cells, Contents: contents, Relationships: rels}
}
