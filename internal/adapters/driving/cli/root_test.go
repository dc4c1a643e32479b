package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withOpener(t *testing.T, o Opener) {
	t.Helper()
	prev := opener
	SetOpener(o)
	t.Cleanup(func() {
		SetOpener(prev)
		SetServices(&Services{})
	})
}

func TestOpenServices_PassesOptions(t *testing.T) {
	var got []OpenOptions
	withOpener(t, func(_ context.Context, opts OpenOptions) (*Services, error) {
		got = append(got, opts)
		return &Services{}, nil
	})

	_, _ = execute(t, "--project", "work/b.cells", "--config-dir", "/tmp/cfg", "cell", "list")
	_, _ = execute(t, "settings", "keys")
	mustExecute(t, "version")

	require.Len(t, got, 2)
	assert.Equal(t, "work/b.cells", got[0].ProjectPath)
	assert.Equal(t, "/tmp/cfg", got[0].ConfigDir)
	assert.True(t, got[0].NeedProject)
	assert.False(t, got[1].NeedProject)
	assert.Equal(t, "board.cells", got[1].ProjectPath)
}

func TestOpenServices_OpenerError(t *testing.T) {
	boom := errors.New("cannot open")
	withOpener(t, func(context.Context, OpenOptions) (*Services, error) {
		return nil, boom
	})

	_, err := execute(t, "cell", "list")

	assert.ErrorIs(t, err, boom)
}

func TestExecute_ClosesServices(t *testing.T) {
	closed := 0
	withOpener(t, func(context.Context, OpenOptions) (*Services, error) {
		return &Services{Close: func() error { closed++; return nil }}, nil
	})
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"cell", "list"})
	defer rootCmd.SetArgs(nil)

	_ = Execute(context.Background())

	assert.Equal(t, 1, closed)
	assert.Nil(t, closeServices)
}

func TestServicesNeeded(t *testing.T) {
	assert.Equal(t, servicesNone, servicesNeeded(versionCmd))
	assert.Equal(t, servicesConfig, servicesNeeded(settingsSetCmd))
	assert.Equal(t, "", servicesNeeded(cellListCmd))
}
