package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-shellwords"
	"github.com/natefinch/atomic"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
	"github.com/custodia-labs/cellstore/internal/logger"
)

// Ensure Reconciler implements the interface.
var _ driving.EditService = (*Reconciler)(nil)

// fallbackEditors are tried after the explicit command, the configured
// command and $EDITOR.
var fallbackEditors = []string{"vi", "nano"}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// PollInterval is how often the editor process is checked.
	PollInterval time.Duration

	// EditorCommand is the configured editor, possibly with arguments.
	EditorCommand string

	// Interactive hands the caller's terminal to the editor.
	Interactive bool

	// TempDir holds files materialized for inline and remote cells.
	// Empty means os.TempDir.
	TempDir string

	// Getenv reads the environment. Nil means os.Getenv.
	Getenv func(string) string
}

// Reconciler hands cell content to external editors and folds the result
// back into the store once the editor exits.
type Reconciler struct {
	store    driven.CellStore
	cells    *CellService
	launcher driven.EditorLauncher
	opts     ReconcilerOptions
	now      func() time.Time

	mu       sync.Mutex
	sessions map[domain.CellID]*editSession
}

// NewReconciler creates a reconciler. Content synced back from an editor
// is written through cells so it is journaled like any other edit.
func NewReconciler(
	store driven.CellStore,
	cells *CellService,
	launcher driven.EditorLauncher,
	opts ReconcilerOptions,
) *Reconciler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = domain.DefaultSettings().Reconciler.PollInterval
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	return &Reconciler{
		store:    store,
		cells:    cells,
		launcher: launcher,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[domain.CellID]*editSession),
	}
}

// BeginEdit opens a cell in an editor and starts watching it. Inline and
// remote content is materialized into a temporary file; external and
// symlinked files are edited in place and leased until the editor exits.
func (r *Reconciler) BeginEdit(ctx context.Context, id domain.CellID, command string) (driving.EditSession, error) {
	cell, err := r.store.GetCell(ctx, id)
	if err != nil {
		return nil, err
	}
	argv, err := r.resolveEditor(command)
	if err != nil {
		return nil, err
	}
	content, err := r.store.ReadContent(ctx, *cell)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, busy := r.sessions[id]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: cell %s is already open in an editor", domain.ErrEditInProgress, cell.ShortID)
	}
	s := &editSession{
		r:            r,
		cell:         *cell,
		original:     content,
		originalHash: domain.HashContent(content),
		storeHash:    cell.ContentHash,
		done:         make(chan struct{}),
	}
	r.sessions[id] = s
	r.mu.Unlock()

	if err := s.prepare(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.watcher = r.watch(s.path)

	proc, err := r.launcher.Launch(ctx, append(argv, s.path), r.opts.Interactive)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("launching %s: %w", argv[0], err)
	}
	s.proc = proc

	// The session outlives the request that started it.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.run(watchCtx)

	logger.Info("edit: %s opened in %s (pid %d) at %s", cell.ShortID, argv[0], proc.PID(), s.path)
	return s, nil
}

// Conflicts returns unresolved conflicts.
func (r *Reconciler) Conflicts(ctx context.Context) ([]domain.Conflict, error) {
	return r.store.ListConflicts(ctx)
}

// ResolveConflict settles a conflict. Keeping the external side writes the
// editor's version as a journaled edit; either way the record and its
// files are removed.
func (r *Reconciler) ResolveConflict(ctx context.Context, id domain.CellID, resolution domain.ConflictResolution) error {
	c, err := r.store.GetConflict(ctx, id)
	if err != nil {
		return err
	}

	switch resolution {
	case domain.KeepExternal:
		data, err := os.ReadFile(c.ExternalPath)
		if err != nil {
			return domain.NewIOError("read", c.ExternalPath, err)
		}
		if _, err := r.cells.UpdateContent(ctx, id, data); err != nil {
			return fmt.Errorf("applying external version: %w", err)
		}
	case domain.KeepInternal:
	default:
		return fmt.Errorf("%w: unknown resolution %q", domain.ErrInvalidInput, resolution)
	}

	if err := r.store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.DeleteConflict(ctx, id)
	}); err != nil {
		return err
	}

	for _, p := range []string{c.ArtifactPath, c.ExternalPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("conflict: removing %s: %v", p, err)
		}
	}
	logger.Info("conflict: %s resolved keeping %s", c.ShortID, resolution)
	return nil
}

// resolveEditor picks the first usable editor: the explicit command, the
// configured command, $EDITOR, then vi and nano.
func (r *Reconciler) resolveEditor(command string) ([]string, error) {
	candidates := append([]string{command, r.opts.EditorCommand, r.opts.Getenv("EDITOR")}, fallbackEditors...)
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		argv, err := shellwords.Parse(c)
		if err != nil || len(argv) == 0 {
			logger.Warn("edit: ignoring editor %q: %v", c, err)
			continue
		}
		if _, err := r.launcher.LookPath(argv[0]); err != nil {
			logger.Debug("edit: editor %q not found", argv[0])
			continue
		}
		return argv, nil
	}
	return nil, domain.ErrNoEditor
}

// watch observes the directory holding path. Saves are counted for
// reporting only, so a watcher that cannot start is not fatal.
func (r *Reconciler) watch(path string) *fsnotify.Watcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("edit: file watcher unavailable: %v", err)
		return nil
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("edit: watching %s: %v", filepath.Dir(path), err)
		w.Close()
		return nil
	}
	return w
}

func (r *Reconciler) endSession(id domain.CellID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// reconcile decides what an exited editor left behind.
func (r *Reconciler) reconcile(ctx context.Context, s *editSession) driving.EditResult {
	result := driving.EditResult{CellID: s.cell.ID, Saves: s.saves}

	data, err := os.ReadFile(s.path)
	if err != nil {
		result.Outcome = driving.EditAbandoned
		result.Err = domain.NewIOError("read", s.path, err)
		return result
	}
	if domain.HashContent(data) == s.originalHash {
		result.Outcome = driving.EditUnchanged
		return result
	}

	cell, err := r.store.GetCell(ctx, s.cell.ID)
	if err != nil {
		result.Outcome = driving.EditAbandoned
		result.Err = fmt.Errorf("cell changed during edit: %w", err)
		return result
	}

	if cell.ContentHash == s.storeHash {
		s.releaseLease()
		snap, err := r.cells.syncExternalContent(ctx, cell.ID, s.original, data)
		if err != nil {
			result.Outcome = driving.EditAbandoned
			result.Err = err
			return result
		}
		result.Outcome = driving.EditSynced
		result.Snapshot = snap
		return result
	}

	conflict, err := r.recordConflict(ctx, *cell, s, data)
	if err != nil {
		result.Outcome = driving.EditAbandoned
		result.Err = err
		return result
	}
	result.Outcome = driving.EditConflict
	result.Conflict = conflict
	result.Err = &domain.ConflictError{
		CellID:       cell.ID,
		ShortID:      cell.ShortID,
		ArtifactPath: conflict.ArtifactPath,
	}
	return result
}

// recordConflict writes the artifact holding both versions, keeps a copy
// of the editor's version for resolution and records the conflict.
func (r *Reconciler) recordConflict(
	ctx context.Context,
	cell domain.Cell,
	s *editSession,
	external []byte,
) (*domain.Conflict, error) {
	inApp, err := r.store.ReadContent(ctx, cell)
	if err != nil {
		return nil, err
	}

	now := r.now()
	dir := filepath.Join(r.store.Layout().ContentDir, domain.ConflictsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewIOError("mkdir", dir, err)
	}
	base := fmt.Sprintf("%s-%s", cell.ShortID, now.Format("20060102T150405.000000000"))

	artifact := filepath.Join(dir, base+".conflict")
	if err := atomic.WriteFile(artifact, bytes.NewReader(domain.FormatConflictArtifact(inApp, external))); err != nil {
		return nil, domain.NewIOError("write", artifact, err)
	}
	externalCopy := filepath.Join(dir, base+".external")
	if err := atomic.WriteFile(externalCopy, bytes.NewReader(external)); err != nil {
		return nil, domain.NewIOError("write", externalCopy, err)
	}

	c := domain.Conflict{
		CellID:       cell.ID,
		ShortID:      cell.ShortID,
		Kind:         domain.ClassifyConflict(!s.temp, s.saves),
		ArtifactPath: artifact,
		ExternalPath: externalCopy,
		OriginalHash: s.originalHash,
		InAppHash:    domain.HashContent(inApp),
		ExternalHash: domain.HashContent(external),
		DetectedAt:   now,
	}
	if err := r.store.WithTx(ctx, func(tx driven.CellTx) error {
		return tx.PutConflict(ctx, c)
	}); err != nil {
		return nil, err
	}

	logger.Warn("edit: %s conflict on %s, both versions in %s", c.Kind, cell.ShortID, artifact)
	return &c, nil
}

// editSession is one running editor. Its result is written once by run
// before done is closed.
type editSession struct {
	r    *Reconciler
	cell domain.Cell
	path string
	temp bool

	original     []byte
	originalHash string
	storeHash    string

	proc    driven.EditorProcess
	watcher *fsnotify.Watcher
	release func()
	saves   int

	cancel      context.CancelFunc
	done        chan struct{}
	result      driving.EditResult
	releaseOnce sync.Once
	cleanupOnce sync.Once
}

var _ driving.EditSession = (*editSession)(nil)

// CellID returns the cell being edited.
func (s *editSession) CellID() domain.CellID { return s.cell.ID }

// Path returns the file handed to the editor.
func (s *editSession) Path() string { return s.path }

// Wait blocks until the edit is reconciled or ctx ends. A conflict is
// returned both in the result and as a *domain.ConflictError.
func (s *editSession) Wait(ctx context.Context) (driving.EditResult, error) {
	select {
	case <-s.done:
		return s.result, s.result.Err
	case <-ctx.Done():
		return driving.EditResult{}, ctx.Err()
	}
}

// Cancel terminates the editor and abandons the edit.
func (s *editSession) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// prepare picks the file the editor works on.
func (s *editSession) prepare() error {
	switch s.cell.Location {
	case domain.LocationInline, domain.LocationRemote:
		f, err := os.CreateTemp(s.r.opts.TempDir, "cellstore-"+s.cell.ShortID+"-*"+s.cell.Type.Extension())
		if err != nil {
			return domain.NewIOError("create", s.r.opts.TempDir, err)
		}
		s.path, s.temp = f.Name(), true
		_, werr := f.Write(s.original)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return domain.NewIOError("write", s.path, werr)
		}
		return nil

	case domain.LocationExternal, domain.LocationSymlink:
		path, err := s.r.store.Layout().ResolvePath(s.cell.Location, s.cell.Path)
		if err != nil {
			return err
		}
		release, err := s.r.store.LeaseFile(path)
		if err != nil {
			return err
		}
		s.path, s.release = path, release
		return nil

	default:
		return fmt.Errorf("%w: unknown content location %q", domain.ErrPathResolution, s.cell.Location)
	}
}

// run polls the editor until it exits or the session is cancelled.
func (s *editSession) run(ctx context.Context) {
	defer close(s.done)
	defer s.cleanup()

	ticker := time.NewTicker(s.r.opts.PollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if s.watcher != nil {
		events, errs = s.watcher.Events, s.watcher.Errors
	}
	name := filepath.Base(s.path)

	for {
		select {
		case <-ctx.Done():
			if !s.proc.Exited() {
				if err := s.proc.Kill(); err != nil {
					logger.Warn("edit: stopping editor for %s: %v", s.cell.ShortID, err)
				}
			}
			s.result = driving.EditResult{CellID: s.cell.ID, Outcome: driving.EditAbandoned, Saves: s.saves}
			logger.Info("edit: %s abandoned", s.cell.ShortID)
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) == name && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				s.saves++
				logger.Debug("edit: %s saved (%d)", s.cell.ShortID, s.saves)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("edit: watcher error: %v", err)

		case <-ticker.C:
			if !s.proc.Exited() {
				continue
			}
			s.result = s.r.reconcile(ctx, s)
			logger.Info("edit: %s %s", s.cell.ShortID, s.result.Outcome)
			return
		}
	}
}

func (s *editSession) releaseLease() {
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// cleanup stops watching, returns the file to the store and removes any
// temporary copy.
func (s *editSession) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.releaseLease()
		if s.temp && s.path != "" {
			if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("edit: removing %s: %v", s.path, err)
			}
		}
		s.r.endSession(s.cell.ID)
	})
}
