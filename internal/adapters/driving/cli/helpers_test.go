package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/app"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

// scriptedLauncher runs no process: Launch applies edit to the file and
// reports the editor as exited.
type scriptedLauncher struct {
	edit func(path string) error
}

func (l *scriptedLauncher) LookPath(name string) (string, error) { return name, nil }

func (l *scriptedLauncher) Launch(_ context.Context, argv []string, _ bool) (driven.EditorProcess, error) {
	if l.edit != nil {
		if err := l.edit(argv[len(argv)-1]); err != nil {
			return nil, err
		}
	}
	p := &exitedProcess{}
	p.exited.Store(true)
	return p, nil
}

type exitedProcess struct{ exited atomic.Bool }

func (p *exitedProcess) PID() int     { return 1 }
func (p *exitedProcess) Exited() bool { return p.exited.Load() }
func (p *exitedProcess) Kill() error  { return nil }

// setupTestServices opens a real project in a temp dir and installs its
// services. The launcher, when given, stands in for the editor.
func setupTestServices(t *testing.T, launcher driven.EditorLauncher) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.toml"),
		[]byte("[reconciler]\npoll_interval_ms = 5\n\n[editor]\ncommand = \"fake-editor\"\n"), 0o600))

	if launcher == nil {
		launcher = &scriptedLauncher{}
	}
	a, err := app.Open(context.Background(), app.Options{
		ProjectPath: filepath.Join(dir, "board.cells"),
		ConfigDir:   cfgDir,
		NeedProject: true,
		Launcher:    launcher,
	})
	require.NoError(t, err)

	SetServices(&Services{
		Cells:    a.Cells,
		Reader:   a.Cache,
		History:  a.History,
		Edit:     a.Edit,
		Traces:   a.Traces,
		Transfer: a.Transfer,
		Settings: a.Settings,
	})
	t.Cleanup(func() {
		SetServices(&Services{})
		assert.NoError(t, a.Close())
	})
	return a
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// mustExecute runs args and fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, out)
	return out
}

// resetFlags restores every flag to its default; cobra keeps parsed
// values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
