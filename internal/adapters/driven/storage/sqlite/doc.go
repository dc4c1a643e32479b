// Package sqlite provides the SQLite-backed implementation of driven.CellStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database file per project holds:
//
//   - cells: Cell metadata and inline content
//   - relationships: Directed edges between cells
//   - snapshots: The undo/redo journal
//   - conflicts: Unresolved external edit conflicts
//   - traces: Execution history (never journaled)
//
// Content that does not live inline is kept in sidecar files under the
// project's content directory (see domain.ProjectLayout).
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Thread Safety
//
// Reads run concurrently under SQLite's WAL mode. Writes are serialized by
// WithTx. A failed transaction rolls back its rows and restores every file
// it wrote or removed.
package sqlite
