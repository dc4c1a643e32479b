package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

func TestCellCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range cellCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"create", "list", "show", "content", "write", "update", "start", "delete"} {
		assert.Contains(t, names, want)
	}
}

func TestCellCreate_AndList(t *testing.T) {
	setupTestServices(t, nil)

	out := mustExecute(t, "cell", "create", "--name", "intro", "--content", "Hello World")
	assert.Contains(t, out, "Created cell 00 (intro) (text, inline)")

	out = mustExecute(t, "cell", "create", "--type", "python", "--content", "print(1)")
	assert.Contains(t, out, "Created cell 01 (python, external)")

	out = mustExecute(t, "cell", "list")
	assert.Contains(t, out, "00")
	assert.Contains(t, out, "intro")
	assert.Contains(t, out, "external")
	assert.Contains(t, out, "Total: 2 cells")

	out = mustExecute(t, "cell", "content", "00")
	assert.Equal(t, "Hello World", out)
}

func TestCellCreate_InvalidInput(t *testing.T) {
	setupTestServices(t, nil)

	_, err := execute(t, "cell", "create", "--bounds", "0,0,-1,5")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "cell", "create", "--bounds", "1,2,3")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "cell", "create", "--type", "cobol")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "cell", "create", "--content", "x", "--file", "y")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCellShow(t *testing.T) {
	setupTestServices(t, nil)
	mustExecute(t, "cell", "create", "--name", "intro", "--bounds", "1,2,30,40", "--summary", "first")

	out := mustExecute(t, "cell", "show", "00")

	assert.Contains(t, out, "Cell: 00")
	assert.Contains(t, out, "Name:      intro")
	assert.Contains(t, out, "Bounds:    1,2,30,40")
	assert.Contains(t, out, "Summary:   first")
}

func TestCellShow_UnknownRef(t *testing.T) {
	setupTestServices(t, nil)

	_, err := execute(t, "cell", "show", "ZZ")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCellWrite_FromFileAndStdin(t *testing.T) {
	a := setupTestServices(t, nil)
	mustExecute(t, "cell", "create", "--content", "old")
	id, err := a.Cells.ResolveRef(context.Background(), "00")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	out := mustExecute(t, "cell", "write", "00", "--file", path)
	assert.Contains(t, out, "Wrote 9 bytes to 00")

	content, err := a.Cache.Content(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "from file", string(content))

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString("from stdin"))
	rootCmd.SetArgs([]string{"cell", "write", "00", "--file", "-"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	content, err = a.Cache.Content(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(content))
}

func TestCellWrite_RequiresContent(t *testing.T) {
	setupTestServices(t, nil)
	mustExecute(t, "cell", "create")

	_, err := execute(t, "cell", "write", "00")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCellUpdate_StartAndDelete(t *testing.T) {
	a := setupTestServices(t, nil)
	mustExecute(t, "cell", "create")
	mustExecute(t, "cell", "create")

	out := mustExecute(t, "cell", "update", "01", "--name", "renamed", "--bounds", "5,5,10,10")
	assert.Contains(t, out, "Updated cell 01 (renamed)")

	mustExecute(t, "cell", "start", "01")
	cells := a.Cache.List()
	require.Len(t, cells, 2)
	assert.False(t, cells[0].IsStartPoint)
	assert.True(t, cells[1].IsStartPoint)
	assert.Equal(t, domain.Rectangle{X: 5, Y: 5, Width: 10, Height: 10}, cells[1].Bounds)

	out = mustExecute(t, "cell", "list")
	assert.Contains(t, out, "* 01")

	mustExecute(t, "cell", "delete", "00")
	assert.Len(t, a.Cache.List(), 1)
}

func TestCellCommands_ServiceNotConfigured(t *testing.T) {
	SetServices(&Services{})

	for _, args := range [][]string{
		{"cell", "list"},
		{"cell", "create"},
		{"cell", "show", "00"},
		{"rel", "add", "00", "01"},
		{"undo"},
		{"edit", "00"},
		{"trace", "list"},
		{"export", t.TempDir()},
		{"settings"},
	} {
		_, err := execute(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "not configured", args)
	}
}
