package domain

import (
	"fmt"
	"time"
)

// OperationKind names the user-level operation a snapshot records.
type OperationKind string

// Operation kinds.
const (
	OperationCreate       OperationKind = "create"
	OperationDelete       OperationKind = "delete"
	OperationModify       OperationKind = "modify"
	OperationSplit        OperationKind = "split"
	OperationMerge        OperationKind = "merge"
	OperationRelationship OperationKind = "relationship"
	OperationExternalEdit OperationKind = "external_edit"
)

// ChangeKind discriminates the variants of Change.
type ChangeKind string

// Change kinds.
const (
	ChangeCellCreated         ChangeKind = "cell_created"
	ChangeCellDeleted         ChangeKind = "cell_deleted"
	ChangeCellModified        ChangeKind = "cell_modified"
	ChangeCellSplit           ChangeKind = "cell_split"
	ChangeCellMerged          ChangeKind = "cell_merged"
	ChangeRelationshipCreated ChangeKind = "relationship_created"
	ChangeRelationshipDeleted ChangeKind = "relationship_deleted"
)

// Snapshot is one journal entry. Changes are stored in forward order
// and undone in reverse.
type Snapshot struct {
	ID          string        `json:"id"`
	Sequence    int64         `json:"sequence"`
	Timestamp   time.Time     `json:"timestamp"`
	Description string        `json:"description"`
	Operation   OperationKind `json:"operation"`
	Changes     []Change      `json:"changes"`
	Superseded  bool          `json:"superseded,omitempty"`
}

// AffectedCells returns every cell id touched by the snapshot, deduplicated.
func (s Snapshot) AffectedCells() []CellID {
	seen := make(map[CellID]bool)
	var ids []CellID //nolint:prealloc // size depends on change kinds
	for _, c := range s.Changes {
		for _, id := range c.AffectedCells() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Change is a single reversible step. Which fields are populated depends
// on Kind; every variant carries enough state to apply it in either
// direction without consulting other snapshots.
type Change struct {
	Kind ChangeKind `json:"kind"`

	// Cell is the full state for cell_created and cell_deleted.
	Cell *CellState `json:"cell,omitempty"`

	// CellID, Before and After describe cell_modified.
	CellID CellID    `json:"cell_id,omitempty"`
	Before *CellDiff `json:"before,omitempty"`
	After  *CellDiff `json:"after,omitempty"`

	// Parent and Children describe cell_split. Parent is the pre-split state.
	Parent   *CellState  `json:"parent,omitempty"`
	Children []CellState `json:"children,omitempty"`

	// Merged and Result describe cell_merged.
	Merged []CellState `json:"merged,omitempty"`
	Result *CellState  `json:"result,omitempty"`

	// Relationship is set for relationship_created and relationship_deleted.
	Relationship *Relationship `json:"relationship,omitempty"`
}

// NewCellCreated records a cell coming into existence.
func NewCellCreated(state CellState) Change {
	return Change{Kind: ChangeCellCreated, Cell: &state}
}

// NewCellDeleted records a cell's removal with its full prior state.
func NewCellDeleted(state CellState) Change {
	return Change{Kind: ChangeCellDeleted, Cell: &state}
}

// NewCellModified records a field-level change to an existing cell.
func NewCellModified(id CellID, before, after CellDiff) Change {
	return Change{Kind: ChangeCellModified, CellID: id, Before: &before, After: &after}
}

// NewCellSplit records a split: the parent's pre-split state and the
// children it produced.
func NewCellSplit(parent CellState, children []CellState) Change {
	return Change{Kind: ChangeCellSplit, CellID: parent.Cell.ID, Parent: &parent, Children: children}
}

// NewCellMerged records cells combined into one.
func NewCellMerged(merged []CellState, result CellState) Change {
	return Change{Kind: ChangeCellMerged, Merged: merged, Result: &result}
}

// NewRelationshipCreated records a new edge.
func NewRelationshipCreated(rel Relationship) Change {
	return Change{Kind: ChangeRelationshipCreated, Relationship: &rel}
}

// NewRelationshipDeleted records a removed edge.
func NewRelationshipDeleted(rel Relationship) Change {
	return Change{Kind: ChangeRelationshipDeleted, Relationship: &rel}
}

// Validate checks that the variant carries every field it needs.
func (c Change) Validate() error {
	switch c.Kind {
	case ChangeCellCreated, ChangeCellDeleted:
		if c.Cell == nil {
			return fmt.Errorf("%w: %s without cell state", ErrCorruptJournal, c.Kind)
		}
	case ChangeCellModified:
		if c.CellID == "" || c.Before == nil || c.After == nil {
			return fmt.Errorf("%w: %s without id or diffs", ErrCorruptJournal, c.Kind)
		}
	case ChangeCellSplit:
		if c.Parent == nil || len(c.Children) == 0 {
			return fmt.Errorf("%w: %s without parent or children", ErrCorruptJournal, c.Kind)
		}
	case ChangeCellMerged:
		if c.Result == nil || len(c.Merged) == 0 {
			return fmt.Errorf("%w: %s without inputs or result", ErrCorruptJournal, c.Kind)
		}
	case ChangeRelationshipCreated, ChangeRelationshipDeleted:
		if c.Relationship == nil {
			return fmt.Errorf("%w: %s without relationship", ErrCorruptJournal, c.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown change kind %q", ErrCorruptJournal, c.Kind)
	}
	return nil
}

// AffectedCells returns the cell ids this change reads or writes.
func (c Change) AffectedCells() []CellID {
	switch c.Kind {
	case ChangeCellCreated, ChangeCellDeleted:
		if c.Cell != nil {
			return []CellID{c.Cell.Cell.ID}
		}
	case ChangeCellModified:
		return []CellID{c.CellID}
	case ChangeCellSplit:
		ids := []CellID{c.CellID}
		for _, child := range c.Children {
			ids = append(ids, child.Cell.ID)
		}
		return ids
	case ChangeCellMerged:
		ids := make([]CellID, 0, len(c.Merged)+1)
		for _, m := range c.Merged {
			ids = append(ids, m.Cell.ID)
		}
		if c.Result != nil {
			ids = append(ids, c.Result.Cell.ID)
		}
		return ids
	case ChangeRelationshipCreated, ChangeRelationshipDeleted:
		if c.Relationship != nil {
			return []CellID{c.Relationship.From, c.Relationship.To}
		}
	}
	return nil
}

// CellDiff holds the subset of a cell's fields that a modification touched.
// Nil fields are untouched. When Location is set, Path is applied with it,
// so a nil Path clears the stored path.
type CellDiff struct {
	Name         *string          `json:"name,omitempty"`
	Type         *CellType        `json:"type,omitempty"`
	Bounds       *Rectangle       `json:"bounds,omitempty"`
	Summary      *string          `json:"summary,omitempty"`
	IsStartPoint *bool            `json:"is_start_point,omitempty"`
	PreviewMode  *PreviewMode     `json:"preview_mode,omitempty"`
	Location     *ContentLocation `json:"location,omitempty"`
	Path         *string          `json:"path,omitempty"`
	Content      *[]byte          `json:"content,omitempty"`
	ModifiedAt   *time.Time       `json:"modified_at,omitempty"`
}

// IsEmpty reports whether the diff touches nothing.
func (d CellDiff) IsEmpty() bool {
	return d.Name == nil && d.Type == nil && d.Bounds == nil && d.Summary == nil &&
		d.IsStartPoint == nil && d.PreviewMode == nil && d.Location == nil &&
		d.Content == nil && d.ModifiedAt == nil
}

// ApplyMetadata writes the diff's metadata fields onto c. Content is left
// to the caller because it may live outside the metadata store.
// An empty PreviewMode clears the cell's preview mode.
func (d CellDiff) ApplyMetadata(c *Cell) {
	if d.Name != nil {
		c.Name = *d.Name
	}
	if d.Type != nil {
		c.Type = *d.Type
	}
	if d.Bounds != nil {
		c.Bounds = *d.Bounds
	}
	if d.Summary != nil {
		c.Summary = *d.Summary
	}
	if d.IsStartPoint != nil {
		c.IsStartPoint = *d.IsStartPoint
	}
	if d.PreviewMode != nil {
		if *d.PreviewMode == "" {
			c.PreviewMode = nil
		} else {
			m := *d.PreviewMode
			c.PreviewMode = &m
		}
	}
	if d.Location != nil {
		c.Location = *d.Location
		if d.Path != nil {
			p := *d.Path
			c.Path = &p
		} else {
			c.Path = nil
		}
		if c.Location != LocationInline {
			c.InlineText = nil
		}
	}
	if d.ModifiedAt != nil {
		c.ModifiedAt = *d.ModifiedAt
	}
}
