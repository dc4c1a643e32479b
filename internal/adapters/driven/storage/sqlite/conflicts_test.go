package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

func TestConflicts_PutListDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := domain.Conflict{
		CellID:       "01A",
		ShortID:      "00",
		Kind:         domain.ConflictConcurrentEdit,
		ArtifactPath: "/tmp/00.conflict",
		ExternalPath: "/tmp/cell-00.txt",
		OriginalHash: "h0",
		InAppHash:    "h1",
		ExternalHash: "h2",
		DetectedAt:   time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC),
	}

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.PutConflict(ctx, c)
	}))

	list, err := store.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c, list[0])

	c.InAppHash = "h3"
	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.PutConflict(ctx, c)
	}))
	got, err := store.GetConflict(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, "h3", got.InAppHash)

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.DeleteConflict(ctx, "01A")
	}))
	_, err = store.GetConflict(ctx, "01A")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConflicts_RejectsUnknownKind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.PutConflict(ctx, domain.Conflict{CellID: "01A", ShortID: "00", DetectedAt: time.Now()})
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func writeConflictFiles(t *testing.T, dir, base string) (string, string) {
	t.Helper()
	artifact := filepath.Join(dir, base+".conflict")
	external := filepath.Join(dir, base+".external")
	require.NoError(t, os.WriteFile(artifact, []byte("both"), 0o600))
	require.NoError(t, os.WriteFile(external, []byte("theirs"), 0o600))
	return artifact, external
}

func TestConflicts_ReplaceRemovesOldArtifacts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	oldArtifact, oldExternal := writeConflictFiles(t, dir, "00-first")
	newArtifact, newExternal := writeConflictFiles(t, dir, "00-second")

	put := func(artifact, external string) error {
		return store.WithTx(ctx, func(tx driven.CellTx) error {
			return tx.PutConflict(ctx, domain.Conflict{
				CellID: "01A", ShortID: "00", Kind: domain.ConflictExternalEditor,
				ArtifactPath: artifact, ExternalPath: external, DetectedAt: time.Now(),
			})
		})
	}
	require.NoError(t, put(oldArtifact, oldExternal))
	require.NoError(t, put(newArtifact, newExternal))

	assert.NoFileExists(t, oldArtifact)
	assert.NoFileExists(t, oldExternal)
	assert.FileExists(t, newArtifact)
	assert.FileExists(t, newExternal)
	got, err := store.GetConflict(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, newArtifact, got.ArtifactPath)
	assert.Equal(t, domain.ConflictExternalEditor, got.Kind)
}

func TestConflicts_DeleteCellDropsConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cell := insertCell(t, store, newTestCell(store, "01A", "00", domain.LocationInline, "x"))
	artifact, external := writeConflictFiles(t, t.TempDir(), "00")

	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.PutConflict(ctx, domain.Conflict{
			CellID: cell.ID, ShortID: cell.ShortID, Kind: domain.ConflictConcurrentEdit,
			ArtifactPath: artifact, ExternalPath: external, DetectedAt: time.Now(),
		})
	}))
	require.NoError(t, store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.DeleteCell(ctx, cell.ID)
	}))

	_, err := store.GetConflict(ctx, cell.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoFileExists(t, artifact)
	assert.NoFileExists(t, external)
}
