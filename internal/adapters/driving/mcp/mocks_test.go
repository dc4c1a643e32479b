package mcp

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// mockCellReader is a mock implementation of driving.CellReader.
type mockCellReader struct {
	cells    []domain.Cell
	content  map[domain.CellID][]byte
	outgoing map[domain.CellID][]domain.CellID
	incoming map[domain.CellID][]domain.CellID
	err      error
}

func (m *mockCellReader) Get(id domain.CellID) (domain.Cell, error) {
	for _, c := range m.cells {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Cell{}, domain.ErrNotFound
}

func (m *mockCellReader) Content(_ context.Context, id domain.CellID) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.content[id], nil
}

func (m *mockCellReader) List() []domain.Cell { return m.cells }

func (m *mockCellReader) Relationships() []domain.Relationship { return nil }

func (m *mockCellReader) Outgoing(id domain.CellID) []domain.CellID { return m.outgoing[id] }

func (m *mockCellReader) Incoming(id domain.CellID) []domain.CellID { return m.incoming[id] }

// mockTraceService is a mock implementation of driving.TraceService.
type mockTraceService struct {
	traces []domain.ExecutionTrace
	err    error
}

func (m *mockTraceService) Record(
	_ context.Context,
	_ domain.ExecutionMode,
	_ *domain.CellID,
	_ json.RawMessage,
) (*domain.ExecutionTrace, error) {
	return nil, m.err
}

func (m *mockTraceService) Get(_ context.Context, _ string) (*domain.ExecutionTrace, error) {
	return nil, m.err
}

func (m *mockTraceService) List(_ context.Context, _ int) ([]domain.ExecutionTrace, error) {
	return m.traces, m.err
}

func sampleReader() *mockCellReader {
	return &mockCellReader{
		cells: []domain.Cell{
			{ID: "01J0000000000000000000000A", ShortID: "00", Name: "entry", Type: domain.CellTypePython,
				Location: domain.LocationExternal, IsStartPoint: true},
			{ID: "01J0000000000000000000000B", ShortID: "01", Type: domain.CellTypeText,
				Location: domain.LocationInline},
		},
		content: map[domain.CellID][]byte{
			"01J0000000000000000000000A": []byte("print('hi')"),
			"01J0000000000000000000000B": []byte("notes"),
		},
		outgoing: map[domain.CellID][]domain.CellID{
			"01J0000000000000000000000A": {"01J0000000000000000000000B"},
		},
		incoming: map[domain.CellID][]domain.CellID{
			"01J0000000000000000000000B": {"01J0000000000000000000000A"},
		},
	}
}
