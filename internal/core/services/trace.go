package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

// Ensure TraceService implements the interface.
var _ driving.TraceService = (*TraceService)(nil)

// TraceService records execution traces. Traces sit outside the journal
// and are never undone.
type TraceService struct {
	traces driven.TraceStore
	cells  driven.CellStore
}

// NewTraceService creates a new trace service.
func NewTraceService(traces driven.TraceStore, cells driven.CellStore) *TraceService {
	return &TraceService{traces: traces, cells: cells}
}

// Record stores a trace. The start cell must exist for single and
// from-cell runs.
func (s *TraceService) Record(
	ctx context.Context,
	mode domain.ExecutionMode,
	start *domain.CellID,
	log json.RawMessage,
) (*domain.ExecutionTrace, error) {
	trace := domain.ExecutionTrace{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Mode:      mode,
		StartCell: start,
		Log:       log,
	}
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	if start != nil {
		if _, err := s.cells.GetCell(ctx, *start); err != nil {
			return nil, fmt.Errorf("start cell: %w", err)
		}
	}

	if err := s.traces.Save(ctx, trace); err != nil {
		return nil, fmt.Errorf("save trace: %w", err)
	}
	return &trace, nil
}

// Get retrieves a trace.
func (s *TraceService) Get(ctx context.Context, id string) (*domain.ExecutionTrace, error) {
	return s.traces.Get(ctx, id)
}

// List returns up to limit traces, newest first.
func (s *TraceService) List(ctx context.Context, limit int) ([]domain.ExecutionTrace, error) {
	return s.traces.List(ctx, limit)
}
