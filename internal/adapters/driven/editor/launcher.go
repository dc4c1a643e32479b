// Package editor starts external editor processes for the reconciler.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

// Ensure ProcessLauncher implements the interface.
var _ driven.EditorLauncher = (*ProcessLauncher)(nil)

// ProcessLauncher runs editors as child processes.
type ProcessLauncher struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewProcessLauncher creates a launcher wired to the process's own stdio.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// LookPath resolves name against PATH.
func (l *ProcessLauncher) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Launch starts argv. The child is not tied to ctx: an edit session keeps
// running after the request that opened it returns, and is stopped with Kill.
func (l *ProcessLauncher) Launch(ctx context.Context, argv []string, interactive bool) (driven.EditorProcess, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty editor command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // argv comes from the user's own editor setting
	cmd := exec.Command(argv[0], argv[1:]...)
	if interactive {
		cmd.Stdin = l.stdin
		cmd.Stdout = l.stdout
		cmd.Stderr = l.stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	exited atomic.Bool
	err    error
	done   chan struct{}
}

func (p *process) wait() {
	p.err = p.cmd.Wait()
	p.exited.Store(true)
	close(p.done)
}

// PID returns the operating system process id.
func (p *process) PID() int { return p.cmd.Process.Pid }

// Exited reports whether the process has terminated.
func (p *process) Exited() bool { return p.exited.Load() }

// Kill terminates the process and waits for it to be reaped.
func (p *process) Kill() error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing editor: %w", err)
	}
	<-p.done
	return nil
}

// ExitErr returns the error from Wait once the process has exited.
func (p *process) ExitErr() error {
	if !p.Exited() {
		return nil
	}
	return p.err
}
