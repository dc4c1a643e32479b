package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/cellstore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var _ driven.CellStore = (*Store)(nil)

// Store is the SQLite-backed cell store for one project.
type Store struct {
	db      *sql.DB
	layout  domain.ProjectLayout
	fetcher driven.RemoteFetcher

	// writeMu makes WithTx the single writer.
	writeMu sync.Mutex

	leaseMu sync.Mutex
	leases  map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithRemoteFetcher sets the fetcher used to fill the remote content cache.
func WithRemoteFetcher(f driven.RemoteFetcher) Option {
	return func(s *Store) {
		s.fetcher = f
	}
}

// NewStore opens or creates the project store at storePath and the
// content directory beside it.
func NewStore(storePath string, opts ...Option) (*Store, error) {
	if storePath == "" {
		return nil, fmt.Errorf("%w: store path is required", domain.ErrInvalidInput)
	}
	layout := domain.NewProjectLayout(storePath)

	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(storePath), 0700); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}
	for _, dir := range []string{domain.CellsDir, domain.AttachmentsDir, domain.CacheDir} {
		if err := os.MkdirAll(filepath.Join(layout.ContentDir, dir), 0700); err != nil {
			return nil, fmt.Errorf("creating content directory: %w", err)
		}
	}

	// WAL lets readers proceed while the single writer commits.
	dsn := storePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		layout: layout,
		leases: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("opened cell store %s (content in %s)", storePath, layout.ContentDir)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.layout.StorePath
}

// Layout returns the project's filesystem layout.
func (s *Store) Layout() domain.ProjectLayout {
	return s.layout
}

// TraceStore returns a TraceStore interface backed by this store.
func (s *Store) TraceStore() driven.TraceStore {
	return &traceStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		logger.Debug("applied migration %s", name)
	}

	return nil
}

// GetCell retrieves a cell's metadata by ID.
func (s *Store) GetCell(ctx context.Context, id domain.CellID) (*domain.Cell, error) {
	return getCell(ctx, s.db, id)
}

// GetCellByShortID retrieves a cell by its display id, ignoring case.
func (s *Store) GetCellByShortID(ctx context.Context, shortID string) (*domain.Cell, error) {
	row := s.db.QueryRowContext(ctx, selectCell+" WHERE short_id = ?", domain.NormalizeShortID(shortID))
	return scanCell(row)
}

// ListCells returns metadata for every cell, oldest first.
func (s *Store) ListCells(ctx context.Context) ([]domain.Cell, error) {
	return listCells(ctx, s.db, selectCell+" ORDER BY id")
}

// ListRelationships returns every relationship.
func (s *Store) ListRelationships(ctx context.Context) ([]domain.Relationship, error) {
	return listRelationships(ctx, s.db,
		"SELECT from_id, to_id, created_at FROM relationships ORDER BY from_id, to_id")
}

// ReadContent returns a cell's raw content.
func (s *Store) ReadContent(ctx context.Context, cell domain.Cell) ([]byte, error) {
	return s.readContent(ctx, cell)
}

// LeaseFile marks path as owned by an external editor.
func (s *Store) LeaseFile(path string) (func(), error) {
	key := filepath.Clean(path)

	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	if _, ok := s.leases[key]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEditInProgress, key)
	}
	s.leases[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.leaseMu.Lock()
			delete(s.leases, key)
			s.leaseMu.Unlock()
		})
	}, nil
}

func (s *Store) isLeased(path string) bool {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	_, ok := s.leases[filepath.Clean(path)]
	return ok
}

// WithTx runs fn inside one transaction. On error the rows roll back and
// every file fn touched is restored to its prior bytes or absence.
func (s *Store) WithTx(ctx context.Context, fn func(tx driven.CellTx) error) (err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	t := &tx{store: s, sqlTx: sqlTx, backedUp: make(map[string]bool)}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback() //nolint:errcheck
			t.restoreFiles()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback() //nolint:errcheck
			t.restoreFiles()
		}
	}()

	if err = fn(t); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
