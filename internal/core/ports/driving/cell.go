package driving

import (
	"context"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// CreateCellRequest describes a new cell.
type CreateCellRequest struct {
	Type    domain.CellType
	Name    string
	Bounds  domain.Rectangle
	Content []byte
	Summary string

	// Preference is the caller's placement choice. Kinds with a fixed
	// placement ignore it.
	Preference *domain.ContentLocation

	// Source is the URL for remote cells or the absolute file path for
	// symlinked cells.
	Source string
}

// CellUpdate changes metadata on an existing cell. Nil fields are left alone.
type CellUpdate struct {
	Name        *string
	Type        *domain.CellType
	Bounds      *domain.Rectangle
	Summary     *string
	PreviewMode *domain.PreviewMode
}

// CellService performs journaled mutations of the cell graph.
// Every successful call appends exactly one snapshot.
type CellService interface {
	// CreateCell creates a cell and places its content.
	CreateCell(ctx context.Context, req CreateCellRequest) (*domain.Cell, error)

	// UpdateContent replaces a cell's content.
	UpdateContent(ctx context.Context, id domain.CellID, content []byte) (*domain.Cell, error)

	// UpdateCell changes a cell's metadata.
	UpdateCell(ctx context.Context, id domain.CellID, update CellUpdate) (*domain.Cell, error)

	// SetStartPoint makes id the only start point.
	SetStartPoint(ctx context.Context, id domain.CellID) error

	// DeleteCell removes a cell and every relationship touching it.
	DeleteCell(ctx context.Context, id domain.CellID) error

	// CreateRelationship adds a directed edge.
	CreateRelationship(ctx context.Context, from, to domain.CellID) error

	// DeleteRelationship removes a directed edge.
	DeleteRelationship(ctx context.Context, from, to domain.CellID) error

	// SplitCell divides a cell in two along direction. The first child
	// takes ratio of the area and inherits the content.
	SplitCell(ctx context.Context, id domain.CellID, direction domain.SplitDirection, ratio float64) ([]domain.Cell, error)

	// MergeCells replaces two or more cells with one covering their bounding box.
	MergeCells(ctx context.Context, ids []domain.CellID, cellType domain.CellType, content []byte) (*domain.Cell, error)

	// ResolveRef accepts a ULID or short id and returns the cell id.
	ResolveRef(ctx context.Context, ref string) (domain.CellID, error)
}

// CellReader serves reads from the in-memory graph.
type CellReader interface {
	// Get returns a cell's metadata.
	Get(id domain.CellID) (domain.Cell, error)

	// Content returns a cell's content, loading it on first access.
	Content(ctx context.Context, id domain.CellID) ([]byte, error)

	// List returns every cell, oldest first.
	List() []domain.Cell

	// Relationships returns every relationship.
	Relationships() []domain.Relationship

	// Outgoing returns the cells id points to.
	Outgoing(id domain.CellID) []domain.CellID

	// Incoming returns the cells pointing to id.
	Incoming(id domain.CellID) []domain.CellID
}
