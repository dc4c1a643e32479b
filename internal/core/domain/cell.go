package domain

import (
	"fmt"
	"math"
	"time"
)

// CellID is the stable identifier of a cell: a 26 character ULID string.
// ULID text sorts by creation time.
type CellID string

// String returns the string representation.
func (id CellID) String() string {
	return string(id)
}

// CellType is the kind of content a cell holds.
type CellType string

// Available cell types.
const (
	CellTypeText     CellType = "text"
	CellTypePython   CellType = "python"
	CellTypeMarkdown CellType = "markdown"
	CellTypeJSON     CellType = "json"
)

// IsValid returns true if the cell type is recognised.
func (t CellType) IsValid() bool {
	switch t {
	case CellTypeText, CellTypePython, CellTypeMarkdown, CellTypeJSON:
		return true
	default:
		return false
	}
}

// StorageRule returns how content of this type is placed.
func (t CellType) StorageRule() StorageRule {
	switch t {
	case CellTypePython:
		return StorageAlwaysExternal
	case CellTypeJSON:
		return StorageUserChoice
	default:
		return StorageSizeDependent
	}
}

// Extension returns the file extension used for sidecar files.
func (t CellType) Extension() string {
	switch t {
	case CellTypePython:
		return ".py"
	case CellTypeMarkdown:
		return ".md"
	case CellTypeJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// SplitDirection is the axis a split cuts along.
type SplitDirection string

// Split directions. Horizontal cuts along y, vertical along x.
const (
	SplitHorizontal SplitDirection = "horizontal"
	SplitVertical   SplitDirection = "vertical"
)

// IsValid returns true if the direction is recognised.
func (d SplitDirection) IsValid() bool {
	return d == SplitHorizontal || d == SplitVertical
}

// PreviewMode controls how a cell renders its content.
type PreviewMode string

// Preview modes.
const (
	PreviewSource   PreviewMode = "source"
	PreviewRendered PreviewMode = "rendered"
	PreviewSplit    PreviewMode = "split"
)

// IsValid returns true if the preview mode is recognised.
func (m PreviewMode) IsValid() bool {
	switch m {
	case PreviewSource, PreviewRendered, PreviewSplit:
		return true
	default:
		return false
	}
}

// Rectangle is a cell's position and size on the canvas.
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks that the rectangle has a finite origin and positive size.
func (r Rectangle) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bounds must be finite", ErrInvalidInput)
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: bounds must have positive width and height", ErrInvalidInput)
	}
	return nil
}

// Split cuts the rectangle in two. The ratio is the share given to the
// first half and must lie strictly between 0 and 1.
func (r Rectangle) Split(direction SplitDirection, ratio float64) (Rectangle, Rectangle, error) {
	if !(ratio > 0 && ratio < 1) {
		return Rectangle{}, Rectangle{}, fmt.Errorf("%w: split ratio %v must be between 0 and 1", ErrInvalidInput, ratio)
	}
	switch direction {
	case SplitHorizontal:
		top := r.Height * ratio
		return Rectangle{X: r.X, Y: r.Y, Width: r.Width, Height: top},
			Rectangle{X: r.X, Y: r.Y + top, Width: r.Width, Height: r.Height - top}, nil
	case SplitVertical:
		left := r.Width * ratio
		return Rectangle{X: r.X, Y: r.Y, Width: left, Height: r.Height},
			Rectangle{X: r.X + left, Y: r.Y, Width: r.Width - left, Height: r.Height}, nil
	default:
		return Rectangle{}, Rectangle{}, fmt.Errorf("%w: unknown split direction %q", ErrInvalidInput, direction)
	}
}

// BoundingBox returns the smallest rectangle containing all of rects.
func BoundingBox(rects ...Rectangle) Rectangle {
	if len(rects) == 0 {
		return Rectangle{}
	}
	minX, minY := rects[0].X, rects[0].Y
	maxX, maxY := rects[0].X+rects[0].Width, rects[0].Y+rects[0].Height
	for _, r := range rects[1:] {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.Width)
		maxY = math.Max(maxY, r.Y+r.Height)
	}
	return Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Cell is a positioned unit of content. Exactly one of InlineText and Path
// is set, matching Location.
type Cell struct {
	ID             CellID          `json:"id"`
	ShortID        string          `json:"short_id"`
	Name           string          `json:"name,omitempty"`
	Type           CellType        `json:"type"`
	Bounds         Rectangle       `json:"bounds"`
	Location       ContentLocation `json:"location"`
	InlineText     *string         `json:"inline_text,omitempty"`
	Path           *string         `json:"path,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	ContentHash    string          `json:"content_hash"`
	ParentID       *CellID         `json:"parent_id,omitempty"`
	SplitDirection *SplitDirection `json:"split_direction,omitempty"`
	IsStartPoint   bool            `json:"is_start_point"`
	PreviewMode    *PreviewMode    `json:"preview_mode,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ModifiedAt     time.Time       `json:"modified_at"`

	// Children is derived from other cells' ParentID and never persisted.
	Children []CellID `json:"-"`
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	out := c
	if c.InlineText != nil {
		v := *c.InlineText
		out.InlineText = &v
	}
	if c.Path != nil {
		v := *c.Path
		out.Path = &v
	}
	if c.ParentID != nil {
		v := *c.ParentID
		out.ParentID = &v
	}
	if c.SplitDirection != nil {
		v := *c.SplitDirection
		out.SplitDirection = &v
	}
	if c.PreviewMode != nil {
		v := *c.PreviewMode
		out.PreviewMode = &v
	}
	if c.Children != nil {
		out.Children = append([]CellID(nil), c.Children...)
	}
	return out
}

// DisplayName returns the name, or the short id when unnamed.
func (c Cell) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ShortID
}

// Validate checks the cell's structural invariants.
func (c Cell) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: cell id is required", ErrInvalidInput)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: unknown cell type %q", ErrInvalidInput, c.Type)
	}
	if !c.Location.IsValid() {
		return fmt.Errorf("%w: unknown content location %q", ErrInvalidInput, c.Location)
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return fmt.Errorf("%w: cell cannot be its own parent", ErrInvalidInput)
	}
	if c.PreviewMode != nil && !c.PreviewMode.IsValid() {
		return fmt.Errorf("%w: unknown preview mode %q", ErrInvalidInput, *c.PreviewMode)
	}
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if c.Location == LocationInline {
		if c.InlineText == nil || c.Path != nil {
			return fmt.Errorf("%w: inline cell must carry text and no path", ErrInvalidInput)
		}
		return nil
	}
	if c.Path == nil || *c.Path == "" || c.InlineText != nil {
		return fmt.Errorf("%w: %s cell must carry a path and no inline text", ErrPathResolution, c.Location)
	}
	return nil
}

// Relationship is a directed edge between two distinct cells.
type Relationship struct {
	From      CellID    `json:"from"`
	To        CellID    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

// CellState is a complete, self-sufficient record of a cell: its metadata
// plus the raw content bytes. Journal entries carry these so a deleted
// cell can be recreated byte for byte.
type CellState struct {
	Cell    Cell   `json:"cell"`
	Content []byte `json:"content"`
}
