package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriScheme = "cellstore://"

	// tracesListLimit bounds the traces resource.
	tracesListLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "cells",
		Name:        "cells",
		Description: "Every cell in the project with its relationships",
		MIMEType:    "application/json",
	}, s.handleCellsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "cells/{cellId}",
		Name:        "cell-content",
		Description: "Content of a specific cell",
		MIMEType:    "text/plain",
	}, s.handleCellContentResource)

	if s.ports.Traces != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "traces",
			Name:        "traces",
			Description: "Recent execution traces, newest first",
			MIMEType:    "application/json",
		}, s.handleTracesResource)
	}
}

func (s *Server) handleCellsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	cells := s.ports.Cells.List()
	infos := make([]CellInfo, len(cells))
	for i := range cells {
		infos[i] = s.cellInfo(cells[i])
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleCellContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ref := extractCellRef(req.Params.URI)
	if ref == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	cell, err := s.resolve(ref)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	content, err := s.ports.Cells.Content(ctx, cell.ID)
	if err != nil {
		return nil, fmt.Errorf("loading content of %s: %w", cell.ShortID, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     string(content),
		}},
	}, nil
}

func (s *Server) handleTracesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	traces, err := s.ports.Traces.List(ctx, tracesListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	return jsonResult(req.Params.URI, traces)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCellRef extracts the reference from cellstore://cells/{cellId}.
func extractCellRef(uri string) string {
	const prefix = uriScheme + "cells/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	ref := strings.TrimPrefix(uri, prefix)
	if strings.Contains(ref, "/") {
		return ""
	}
	return ref
}
