package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

// traceStore implements driven.TraceStore.
type traceStore struct {
	store *Store
}

var _ driven.TraceStore = (*traceStore)(nil)

// Save stores a trace.
func (s *traceStore) Save(ctx context.Context, trace domain.ExecutionTrace) error {
	log := string(trace.Log)
	if log == "" {
		log = "null"
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO traces (id, created_at, mode, start_cell, log) VALUES (?, ?, ?, ?, ?)
	`, trace.ID, formatTime(trace.Timestamp), string(trace.Mode), nullStringPtr(trace.StartCell), log)
	if err != nil {
		return fmt.Errorf("saving trace: %w", err)
	}
	return nil
}

// Get retrieves a trace by ID.
func (s *traceStore) Get(ctx context.Context, id string) (*domain.ExecutionTrace, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, created_at, mode, start_cell, log FROM traces WHERE id = ?", id)
	return scanTrace(row)
}

// List returns up to limit traces, newest first.
func (s *traceStore) List(ctx context.Context, limit int) ([]domain.ExecutionTrace, error) {
	query := "SELECT id, created_at, mode, start_cell, log FROM traces ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.ExecutionTrace //nolint:prealloc // size unknown from query
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating traces: %w", err)
	}
	return traces, nil
}

func scanTrace(row rowScanner) (*domain.ExecutionTrace, error) {
	var trace domain.ExecutionTrace
	var createdAt, log string
	var startCell sql.NullString
	if err := row.Scan(&trace.ID, &createdAt, &trace.Mode, &startCell, &log); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	var err error
	if trace.Timestamp, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if startCell.Valid {
		id := domain.CellID(startCell.String)
		trace.StartCell = &id
	}
	trace.Log = []byte(log)
	return &trace, nil
}
