package mcp

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// GetCellContentInput is the input schema for the get_cell_content tool.
type GetCellContentInput struct {
	Cell string `json:"cell" jsonschema:"cell id or short id"`
}

// GetCellContentOutput is the output schema for the get_cell_content tool.
type GetCellContentOutput struct {
	ID      string `json:"id"`
	ShortID string `json:"short_id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Binary  bool   `json:"binary,omitempty"`
}

// ListCellsInput is the input schema for the list_cells tool.
type ListCellsInput struct {
	StartPointsOnly bool `json:"start_points_only,omitempty" jsonschema:"only return cells flagged as start points"`
}

// ListCellsOutput is the output schema for the list_cells tool.
type ListCellsOutput struct {
	Cells []CellInfo `json:"cells"`
	Count int        `json:"count"`
}

// CellInfo summarises a cell for an execution engine.
type CellInfo struct {
	ID           string   `json:"id"`
	ShortID      string   `json:"short_id"`
	Name         string   `json:"name,omitempty"`
	Type         string   `json:"type"`
	Location     string   `json:"location"`
	IsStartPoint bool     `json:"is_start_point"`
	Outgoing     []string `json:"outgoing,omitempty"`
	Incoming     []string `json:"incoming,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_cell_content",
		Description: "Return the full content of a cell",
	}, s.handleGetCellContent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_cells",
		Description: "List cells with their types and relationships",
	}, s.handleListCells)
}

func (s *Server) handleGetCellContent(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetCellContentInput,
) (*mcp.CallToolResult, GetCellContentOutput, error) {
	cell, err := s.resolve(input.Cell)
	if err != nil {
		return nil, GetCellContentOutput{}, err
	}

	content, err := s.ports.Cells.Content(ctx, cell.ID)
	if err != nil {
		return nil, GetCellContentOutput{}, fmt.Errorf("loading content of %s: %w", cell.ShortID, err)
	}

	return nil, GetCellContentOutput{
		ID:      string(cell.ID),
		ShortID: cell.ShortID,
		Type:    string(cell.Type),
		Content: string(content),
		Binary:  !utf8.Valid(content),
	}, nil
}

func (s *Server) handleListCells(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListCellsInput,
) (*mcp.CallToolResult, ListCellsOutput, error) {
	cells := s.ports.Cells.List()
	output := ListCellsOutput{Cells: make([]CellInfo, 0, len(cells))}

	for i := range cells {
		if input.StartPointsOnly && !cells[i].IsStartPoint {
			continue
		}
		output.Cells = append(output.Cells, s.cellInfo(cells[i]))
	}
	output.Count = len(output.Cells)

	return nil, output, nil
}

func (s *Server) cellInfo(c domain.Cell) CellInfo {
	return CellInfo{
		ID:           string(c.ID),
		ShortID:      c.ShortID,
		Name:         c.Name,
		Type:         string(c.Type),
		Location:     string(c.Location),
		IsStartPoint: c.IsStartPoint,
		Outgoing:     idStrings(s.ports.Cells.Outgoing(c.ID)),
		Incoming:     idStrings(s.ports.Cells.Incoming(c.ID)),
	}
}

// resolve accepts a cell id or a case-insensitive short id.
func (s *Server) resolve(ref string) (domain.Cell, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Cell{}, fmt.Errorf("%w: cell reference is required", domain.ErrInvalidInput)
	}
	if cell, err := s.ports.Cells.Get(domain.CellID(ref)); err == nil {
		return cell, nil
	}
	for _, cell := range s.ports.Cells.List() {
		if strings.EqualFold(cell.ShortID, ref) {
			return cell, nil
		}
	}
	return domain.Cell{}, fmt.Errorf("cell %q: %w", ref, domain.ErrNotFound)
}

func idStrings(ids []domain.CellID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
