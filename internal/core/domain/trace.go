package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionMode is how a run walked the graph.
type ExecutionMode string

// Execution modes.
const (
	ExecutionAll      ExecutionMode = "all"
	ExecutionFromCell ExecutionMode = "from_cell"
	ExecutionSingle   ExecutionMode = "single"
)

// IsValid returns true if the execution mode is recognised.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ExecutionAll, ExecutionFromCell, ExecutionSingle:
		return true
	default:
		return false
	}
}

// ExecutionTrace is a stored record of one run. Traces are history, not
// state, and are never journaled.
type ExecutionTrace struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Mode      ExecutionMode   `json:"mode"`
	StartCell *CellID         `json:"start_cell,omitempty"`
	Log       json.RawMessage `json:"log"`
}

// Validate checks the trace before it is stored.
func (t ExecutionTrace) Validate() error {
	if !t.Mode.IsValid() {
		return fmt.Errorf("%w: unknown execution mode %q", ErrInvalidInput, t.Mode)
	}
	if t.Mode != ExecutionAll && t.StartCell == nil {
		return fmt.Errorf("%w: %s execution needs a start cell", ErrInvalidInput, t.Mode)
	}
	if len(t.Log) > 0 && !json.Valid(t.Log) {
		return fmt.Errorf("%w: trace log is not valid JSON", ErrInvalidInput)
	}
	return nil
}
