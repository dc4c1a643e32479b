// Package mcp exposes the cell graph to an execution engine over the Model
// Context Protocol. The surface is read-only: engines read cells and their
// content but mutate nothing.
package mcp

import "errors"

// ErrMissingCellReader is returned when the cell reader is not provided.
var ErrMissingCellReader = errors.New("mcp: cell reader is required")
