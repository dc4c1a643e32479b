package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

var errBoom = errors.New("boom")

// setupTestStore creates a store in a temporary project directory.
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "board.cells"), opts...)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// newTestCell builds a cell state at the given location.
func newTestCell(store *Store, id, shortID string, loc domain.ContentLocation, content string) domain.CellState {
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	cell := domain.Cell{
		ID:         domain.CellID(id),
		ShortID:    shortID,
		Type:       domain.CellTypeText,
		Bounds:     domain.Rectangle{X: 1, Y: 2, Width: 30, Height: 40},
		Location:   loc,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if loc == domain.LocationExternal {
		p := store.Layout().ExternalPath(cell.ID, cell.Type)
		cell.Path = &p
	}
	return domain.CellState{Cell: cell, Content: []byte(content)}
}

func insertCell(t *testing.T, store *Store, state domain.CellState) *domain.Cell {
	t.Helper()
	var out *domain.Cell
	err := store.WithTx(context.Background(), func(tx driven.CellTx) error {
		var err error
		out, err = tx.InsertCell(context.Background(), state)
		return err
	})
	require.NoError(t, err)
	return out
}

// ==================== Store Creation ====================

func TestNewStore_CreatesLayout(t *testing.T) {
	store := setupTestStore(t)
	layout := store.Layout()

	for _, dir := range []string{domain.CellsDir, domain.AttachmentsDir, domain.CacheDir} {
		info, err := os.Stat(filepath.Join(layout.ContentDir, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
	assert.FileExists(t, store.Path())

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	cur, err := store.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.cells")
	store, err := NewStore(path)
	require.NoError(t, err)
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "hello"))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	cell, err := reopened.GetCell(context.Background(), "01A")
	require.NoError(t, err)
	assert.Equal(t, "hello", *cell.InlineText)
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Cells ====================

func TestStore_InsertInlineCell(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	state := newTestCell(store, "01A", "0a", domain.LocationInline, "hello")

	inserted := insertCell(t, store, state)
	assert.Equal(t, domain.HashContent([]byte("hello")), inserted.ContentHash)

	got, err := store.GetCell(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, "0A", got.ShortID)
	assert.Equal(t, state.Cell.Bounds, got.Bounds)
	assert.Equal(t, state.Cell.CreatedAt, got.CreatedAt)
	assert.Equal(t, inserted.ContentHash, got.ContentHash)
	assert.Nil(t, got.Path)

	byShort, err := store.GetCellByShortID(ctx, "0a")
	require.NoError(t, err)
	assert.Equal(t, got.ID, byShort.ID)

	content, err := store.ReadContent(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestStore_InsertEmptyInlineCell(t *testing.T) {
	store := setupTestStore(t)
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, ""))

	got, err := store.GetCell(context.Background(), "01A")
	require.NoError(t, err)
	require.NotNil(t, got.InlineText)
	assert.Empty(t, *got.InlineText)
	assert.Equal(t, domain.HashContent(nil), got.ContentHash)
}

func TestStore_InsertExternalCellWritesSidecar(t *testing.T) {
	store := setupTestStore(t)
	state := newTestCell(store, "01B", "01", domain.LocationExternal, "print('hi')")

	cell := insertCell(t, store, state)

	path, err := store.Layout().ResolvePath(cell.Location, cell.Path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))
	assert.Nil(t, cell.InlineText)
}

func TestStore_InsertDuplicate(t *testing.T) {
	store := setupTestStore(t)
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "a"))

	err := store.WithTx(context.Background(), func(tx driven.CellTx) error {
		_, err := tx.InsertCell(context.Background(), newTestCell(store, "01A", "07", domain.LocationInline, "b"))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = store.WithTx(context.Background(), func(tx driven.CellTx) error {
		_, err := tx.InsertCell(context.Background(), newTestCell(store, "01Z", "00", domain.LocationInline, "b"))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestStore_GetCell_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetCell(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListCellsOrdered(t *testing.T) {
	store := setupTestStore(t)
	insertCell(t, store, newTestCell(store, "01C", "02", domain.LocationInline, "c"))
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "a"))

	cells, err := store.ListCells(context.Background())
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, domain.CellID("01A"), cells[0].ID)
	assert.Equal(t, domain.CellID("01C"), cells[1].ID)
}

func TestStore_MissingSidecarIsIOError(t *testing.T) {
	store := setupTestStore(t)
	cell := insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationExternal, "x"))
	path, err := store.Layout().ResolvePath(cell.Location, cell.Path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = store.ReadContent(context.Background(), *cell)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ==================== Transactions ====================

func TestWithTx_RollbackRemovesNewFiles(t *testing.T) {
	store := setupTestStore(t)
	state := newTestCell(store, "01B", "01", domain.LocationExternal, "new")
	path, err := store.Layout().ResolvePath(state.Cell.Location, state.Cell.Path)
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(tx driven.CellTx) error {
		if _, err := tx.InsertCell(context.Background(), state); err != nil {
			return err
		}
		assert.FileExists(t, path)
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.NoFileExists(t, path)
	_, err = store.GetCell(context.Background(), "01B")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithTx_RollbackRestoresOverwrittenFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cell := insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationExternal, "original"))

	err := store.WithTx(ctx, func(tx driven.CellTx) error {
		if err := tx.WriteContent(ctx, cell, []byte("changed")); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := store.GetCell(ctx, "01B")
	require.NoError(t, err)
	content, err := store.ReadContent(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
	assert.Equal(t, domain.HashContent([]byte("original")), got.ContentHash)
}

func TestWithTx_RollbackRestoresDeletedFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cell := insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationExternal, "keep me"))
	path, err := store.Layout().ResolvePath(cell.Location, cell.Path)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx driven.CellTx) error {
		if err := tx.DeleteCell(ctx, cell.ID); err != nil {
			return err
		}
		assert.NoFileExists(t, path)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestWithTx_WriteMovesBetweenLocations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cell := insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "small"))

	err := store.WithTx(ctx, func(tx driven.CellTx) error {
		p := store.Layout().ExternalPath(cell.ID, cell.Type)
		cell.Location = domain.LocationExternal
		cell.Path = &p
		return tx.WriteContent(ctx, cell, []byte("now external"))
	})
	require.NoError(t, err)

	got, err := store.GetCell(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, domain.LocationExternal, got.Location)
	assert.Nil(t, got.InlineText)
	content, err := store.ReadContent(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, "now external", string(content))
}

func TestWithTx_LeasedFileRejectsWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cell := insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationExternal, "v1"))
	path, err := store.Layout().ResolvePath(cell.Location, cell.Path)
	require.NoError(t, err)

	release, err := store.LeaseFile(path)
	require.NoError(t, err)

	_, err = store.LeaseFile(path)
	assert.ErrorIs(t, err, domain.ErrEditInProgress)

	err = store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.WriteContent(ctx, cell, []byte("v2"))
	})
	assert.ErrorIs(t, err, domain.ErrEditInProgress)

	release()
	release()

	err = store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.WriteContent(ctx, cell, []byte("v2"))
	})
	assert.NoError(t, err)
}

// ==================== Relationships ====================

func TestTx_Relationships(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "a"))
	insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationInline, "b"))
	rel := domain.Relationship{From: "01A", To: "01B", CreatedAt: time.Now()}

	run := func(fn func(tx driven.CellTx) error) error {
		return store.WithTx(ctx, fn)
	}

	require.NoError(t, run(func(tx driven.CellTx) error { return tx.InsertRelationship(ctx, rel) }))

	err := run(func(tx driven.CellTx) error { return tx.InsertRelationship(ctx, rel) })
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = run(func(tx driven.CellTx) error {
		return tx.InsertRelationship(ctx, domain.Relationship{From: "01A", To: "01A"})
	})
	assert.ErrorIs(t, err, domain.ErrSelfReference)

	err = run(func(tx driven.CellTx) error {
		return tx.InsertRelationship(ctx, domain.Relationship{From: "01A", To: "nope"})
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rels, err := store.ListRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, domain.CellID("01A"), rels[0].From)

	err = run(func(tx driven.CellTx) error { return tx.DeleteRelationship(ctx, "01B", "01A") })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTx_DeleteCellCascadesRelationships(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "a"))
	insertCell(t, store, newTestCell(store, "01B", "01", domain.LocationInline, "b"))
	insertCell(t, store, newTestCell(store, "01C", "02", domain.LocationInline, "c"))

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		if err := tx.InsertRelationship(ctx, domain.Relationship{From: "01A", To: "01B"}); err != nil {
			return err
		}
		return tx.InsertRelationship(ctx, domain.Relationship{From: "01C", To: "01A"})
	}))

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		rels, err := tx.RelationshipsOf(ctx, "01A")
		require.NoError(t, err)
		assert.Len(t, rels, 2)
		return tx.DeleteCell(ctx, "01A")
	}))

	rels, err := store.ListRelationships(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

// ==================== Remote ====================

type stubFetcher struct {
	calls int
	data  []byte
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func TestStore_RemoteContentFetchedOnceThenCached(t *testing.T) {
	fetcher := &stubFetcher{data: []byte(`{"k":1}`)}
	store := setupTestStore(t, WithRemoteFetcher(fetcher))
	ctx := context.Background()
	url := "https://example.com/data.json"
	cell := domain.Cell{ID: "01R", Location: domain.LocationRemote, Path: &url}

	first, err := store.ReadContent(ctx, cell)
	require.NoError(t, err)
	second, err := store.ReadContent(ctx, cell)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
}

func TestStore_RemoteWithoutFetcher(t *testing.T) {
	store := setupTestStore(t)
	url := "https://example.com/x"

	_, err := store.ReadContent(context.Background(), domain.Cell{Location: domain.LocationRemote, Path: &url})
	assert.ErrorIs(t, err, domain.ErrIO)
}
