package driven

import "context"

// EditorLauncher starts external editor processes.
type EditorLauncher interface {
	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)

	// Launch starts argv[0] with the remaining arguments. When interactive
	// is true the child shares the caller's terminal.
	Launch(ctx context.Context, argv []string, interactive bool) (EditorProcess, error)
}

// EditorProcess is a running editor.
type EditorProcess interface {
	// PID returns the operating system process id.
	PID() int

	// Exited reports whether the process has terminated. It never blocks.
	Exited() bool

	// Kill terminates the process.
	Kill() error
}
