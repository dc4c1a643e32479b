package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

// Ensure TraceStore implements the interface.
var _ driven.TraceStore = (*TraceStore)(nil)

// TraceStore is an in-memory implementation of driven.TraceStore.
type TraceStore struct {
	mu     sync.RWMutex
	traces map[string]domain.ExecutionTrace
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{
		traces: make(map[string]domain.ExecutionTrace),
	}
}

// Save stores a trace. Traces are append-only.
func (s *TraceStore) Save(_ context.Context, trace domain.ExecutionTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.traces[trace.ID]; ok {
		return fmt.Errorf("trace %s: %w", trace.ID, domain.ErrAlreadyExists)
	}
	trace.Log = slices.Clone(trace.Log)
	s.traces[trace.ID] = trace
	return nil
}

// Get retrieves a trace by ID.
func (s *TraceStore) Get(_ context.Context, id string) (*domain.ExecutionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trace, ok := s.traces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	trace.Log = slices.Clone(trace.Log)
	return &trace, nil
}

// List returns up to limit traces, newest first. 0 returns all.
func (s *TraceStore) List(_ context.Context, limit int) ([]domain.ExecutionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	traces := make([]domain.ExecutionTrace, 0, len(s.traces))
	for _, t := range s.traces {
		traces = append(traces, t)
	}
	slices.SortFunc(traces, func(a, b domain.ExecutionTrace) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(traces) > limit {
		traces = traces[:limit]
	}
	return traces, nil
}
