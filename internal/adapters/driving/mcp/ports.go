package mcp

import (
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server reads from.
type Ports struct {
	// Cells serves metadata, relationships and lazily loaded content.
	Cells driving.CellReader

	// Traces lists stored execution traces. Optional.
	Traces driving.TraceService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Cells == nil {
		return ErrMissingCellReader
	}
	return nil
}
