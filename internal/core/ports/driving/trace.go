package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// TraceService records and lists execution traces.
type TraceService interface {
	// Record stores a trace and returns it with its assigned ID.
	Record(ctx context.Context, mode domain.ExecutionMode, start *domain.CellID, log json.RawMessage) (*domain.ExecutionTrace, error)

	// Get retrieves a trace.
	Get(ctx context.Context, id string) (*domain.ExecutionTrace, error)

	// List returns up to limit traces, newest first.
	List(ctx context.Context, limit int) ([]domain.ExecutionTrace, error)
}
