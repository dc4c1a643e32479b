package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var _ driving.CellService = (*CellService)(nil)

// CellService performs journaled mutations. Each mutation computes its
// changes from the current state, applies them forward and appends the
// snapshot in the same transaction, so redo runs exactly the code the
// original operation ran.
type CellService struct {
	store   driven.CellStore
	journal *Journal
	cache   *LazyCache
	now     func() time.Time

	idMu     sync.Mutex
	shortIDs *domain.ShortIDGenerator
}

// NewCellService creates a cell service. cache may be nil.
func NewCellService(store driven.CellStore, journal *Journal, cache *LazyCache) *CellService {
	return &CellService{
		store:   store,
		journal: journal,
		cache:   cache,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateCell creates a cell and places its content.
func (s *CellService) CreateCell(ctx context.Context, req driving.CreateCellRequest) (*domain.Cell, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown cell type %q", domain.ErrInvalidInput, req.Type)
	}
	if err := req.Bounds.Validate(); err != nil {
		return nil, err
	}

	id := newCellID()
	now := s.now()
	content := req.Content
	if content == nil {
		content = []byte{}
	}

	loc := domain.ResolveLocation(req.Type.StorageRule(), int64(len(content)), req.Preference)
	cell := domain.Cell{
		ID:         id,
		Name:       req.Name,
		Type:       req.Type,
		Bounds:     req.Bounds,
		Location:   loc,
		Summary:    req.Summary,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	switch loc {
	case domain.LocationExternal:
		p := s.store.Layout().ExternalPath(id, req.Type)
		cell.Path = &p
	case domain.LocationRemote, domain.LocationSymlink:
		if req.Source == "" {
			return nil, fmt.Errorf("%w: %s cell needs a source", domain.ErrPathResolution, loc)
		}
		if loc == domain.LocationSymlink && !filepath.IsAbs(req.Source) {
			return nil, fmt.Errorf("%w: symlink source %q must be absolute", domain.ErrPathResolution, req.Source)
		}
		// Content is read from the source, never written to it on create.
		if req.Content != nil {
			return nil, fmt.Errorf("%w: %s cell takes its content from the source", domain.ErrInvalidInput, loc)
		}
		src := req.Source
		cell.Path = &src
		existing, err := s.store.ReadContent(ctx, cell)
		if err != nil {
			return nil, err
		}
		content = existing
	}

	_, err := s.mutate(ctx, domain.OperationCreate, func(tx driven.CellTx) (string, []domain.Change, error) {
		shortID, err := s.nextShortID(ctx, tx)
		if err != nil {
			return "", nil, err
		}
		cell.ShortID = shortID
		cell.ContentHash = domain.HashContent(content)
		desc := fmt.Sprintf("Create %s cell %s", cell.Type, shortID)
		return desc, []domain.Change{domain.NewCellCreated(stateOf(cell, content))}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetCell(ctx, id)
}

// UpdateContent replaces a cell's content. The cell may move between
// inline and external storage as its size crosses the threshold.
func (s *CellService) UpdateContent(ctx context.Context, id domain.CellID, content []byte) (*domain.Cell, error) {
	if _, err := s.updateContent(ctx, id, nil, content, domain.OperationModify); err != nil {
		return nil, err
	}
	return s.store.GetCell(ctx, id)
}

// syncExternalContent journals content an external editor already wrote.
// previous is the content the editor started from.
func (s *CellService) syncExternalContent(ctx context.Context, id domain.CellID, previous, content []byte) (*domain.Snapshot, error) {
	return s.updateContent(ctx, id, previous, content, domain.OperationExternalEdit)
}

func (s *CellService) updateContent(
	ctx context.Context,
	id domain.CellID,
	previous, content []byte,
	op domain.OperationKind,
) (*domain.Snapshot, error) {
	if content == nil {
		content = []byte{}
	}
	return s.mutate(ctx, op, func(tx driven.CellTx) (string, []domain.Change, error) {
		cell, err := tx.GetCell(ctx, id)
		if err != nil {
			return "", nil, err
		}
		before := previous
		if before == nil {
			if before, err = tx.ReadContent(ctx, *cell); err != nil {
				return "", nil, err
			}
		}
		if bytes.Equal(before, content) && cell.ContentHash == domain.HashContent(content) {
			return "", nil, nil
		}

		prevAt, now := cell.ModifiedAt, s.now()
		beforeDiff := domain.CellDiff{Content: &before, ModifiedAt: &prevAt}
		afterDiff := domain.CellDiff{Content: &content, ModifiedAt: &now}

		loc, path := s.placement(*cell, cell.Type, len(content))
		if loc != cell.Location || !samePath(path, cell.Path) {
			prevLoc := cell.Location
			beforeDiff.Location, beforeDiff.Path = &prevLoc, cell.Path
			afterDiff.Location, afterDiff.Path = &loc, path
		}

		desc := fmt.Sprintf("Edit content of %s", cell.ShortID)
		if op == domain.OperationExternalEdit {
			desc = fmt.Sprintf("External edit of %s", cell.ShortID)
		}
		return desc, []domain.Change{domain.NewCellModified(id, beforeDiff, afterDiff)}, nil
	})
}

// UpdateCell changes a cell's metadata. A type change re-runs placement.
func (s *CellService) UpdateCell(ctx context.Context, id domain.CellID, upd driving.CellUpdate) (*domain.Cell, error) {
	if upd.Type != nil && !upd.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown cell type %q", domain.ErrInvalidInput, *upd.Type)
	}
	if upd.Bounds != nil {
		if err := upd.Bounds.Validate(); err != nil {
			return nil, err
		}
	}
	if upd.PreviewMode != nil && *upd.PreviewMode != "" && !upd.PreviewMode.IsValid() {
		return nil, fmt.Errorf("%w: unknown preview mode %q", domain.ErrInvalidInput, *upd.PreviewMode)
	}

	_, err := s.mutate(ctx, domain.OperationModify, func(tx driven.CellTx) (string, []domain.Change, error) {
		cell, err := tx.GetCell(ctx, id)
		if err != nil {
			return "", nil, err
		}

		var before, after domain.CellDiff
		if upd.Name != nil && *upd.Name != cell.Name {
			before.Name, after.Name = ptr(cell.Name), ptr(*upd.Name)
		}
		if upd.Bounds != nil && *upd.Bounds != cell.Bounds {
			before.Bounds, after.Bounds = ptr(cell.Bounds), ptr(*upd.Bounds)
		}
		if upd.Summary != nil && *upd.Summary != cell.Summary {
			before.Summary, after.Summary = ptr(cell.Summary), ptr(*upd.Summary)
		}
		if upd.PreviewMode != nil {
			var current domain.PreviewMode
			if cell.PreviewMode != nil {
				current = *cell.PreviewMode
			}
			if current != *upd.PreviewMode {
				before.PreviewMode, after.PreviewMode = ptr(current), ptr(*upd.PreviewMode)
			}
		}
		if upd.Type != nil && *upd.Type != cell.Type {
			before.Type, after.Type = ptr(cell.Type), ptr(*upd.Type)
			if err := s.relocateForType(ctx, tx, *cell, *upd.Type, &before, &after); err != nil {
				return "", nil, err
			}
		}
		if after.IsEmpty() {
			return "", nil, nil
		}

		prevAt, now := cell.ModifiedAt, s.now()
		before.ModifiedAt, after.ModifiedAt = &prevAt, &now
		desc := fmt.Sprintf("Update %s", cell.ShortID)
		return desc, []domain.Change{domain.NewCellModified(id, before, after)}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetCell(ctx, id)
}

// relocateForType moves content when a new type changes its placement.
func (s *CellService) relocateForType(
	ctx context.Context,
	tx driven.CellTx,
	cell domain.Cell,
	newType domain.CellType,
	before, after *domain.CellDiff,
) error {
	content, err := tx.ReadContent(ctx, cell)
	if err != nil {
		return err
	}
	loc, path := s.placement(cell, newType, len(content))
	if loc == cell.Location && samePath(path, cell.Path) {
		return nil
	}
	prevLoc := cell.Location
	before.Location, before.Path, before.Content = &prevLoc, cell.Path, &content
	after.Location, after.Path, after.Content = &loc, path, &content
	return nil
}

// SetStartPoint makes id the only start point.
func (s *CellService) SetStartPoint(ctx context.Context, id domain.CellID) error {
	_, err := s.mutate(ctx, domain.OperationModify, func(tx driven.CellTx) (string, []domain.Change, error) {
		cell, err := tx.GetCell(ctx, id)
		if err != nil {
			return "", nil, err
		}
		starts, err := tx.StartPoints(ctx)
		if err != nil {
			return "", nil, err
		}

		var changes []domain.Change //nolint:prealloc // usually zero or one
		for _, other := range starts {
			if other.ID != id {
				changes = append(changes, domain.NewCellModified(other.ID,
					domain.CellDiff{IsStartPoint: ptr(true)}, domain.CellDiff{IsStartPoint: ptr(false)}))
			}
		}
		if !cell.IsStartPoint {
			changes = append(changes, domain.NewCellModified(id,
				domain.CellDiff{IsStartPoint: ptr(false)}, domain.CellDiff{IsStartPoint: ptr(true)}))
		}
		return fmt.Sprintf("Set start point %s", cell.ShortID), changes, nil
	})
	return err
}

// DeleteCell removes a cell. Its relationships are recorded before the
// cell so undo restores the cell first.
func (s *CellService) DeleteCell(ctx context.Context, id domain.CellID) error {
	_, err := s.mutate(ctx, domain.OperationDelete, func(tx driven.CellTx) (string, []domain.Change, error) {
		cell, err := tx.GetCell(ctx, id)
		if err != nil {
			return "", nil, err
		}
		content, err := tx.ReadContent(ctx, *cell)
		if err != nil {
			return "", nil, err
		}
		rels, err := tx.RelationshipsOf(ctx, id)
		if err != nil {
			return "", nil, err
		}

		changes := make([]domain.Change, 0, len(rels)+1)
		for _, rel := range rels {
			changes = append(changes, domain.NewRelationshipDeleted(rel))
		}
		changes = append(changes, domain.NewCellDeleted(stateOf(*cell, content)))
		return fmt.Sprintf("Delete cell %s", cell.ShortID), changes, nil
	})
	return err
}

// CreateRelationship adds a directed edge.
func (s *CellService) CreateRelationship(ctx context.Context, from, to domain.CellID) error {
	if from == to {
		return domain.ErrSelfReference
	}
	_, err := s.mutate(ctx, domain.OperationRelationship, func(tx driven.CellTx) (string, []domain.Change, error) {
		a, err := tx.GetCell(ctx, from)
		if err != nil {
			return "", nil, fmt.Errorf("source cell: %w", err)
		}
		b, err := tx.GetCell(ctx, to)
		if err != nil {
			return "", nil, fmt.Errorf("target cell: %w", err)
		}
		rel := domain.Relationship{From: from, To: to, CreatedAt: s.now()}
		desc := fmt.Sprintf("Connect %s -> %s", a.ShortID, b.ShortID)
		return desc, []domain.Change{domain.NewRelationshipCreated(rel)}, nil
	})
	return err
}

// DeleteRelationship removes a directed edge.
func (s *CellService) DeleteRelationship(ctx context.Context, from, to domain.CellID) error {
	_, err := s.mutate(ctx, domain.OperationRelationship, func(tx driven.CellTx) (string, []domain.Change, error) {
		rels, err := tx.RelationshipsOf(ctx, from)
		if err != nil {
			return "", nil, err
		}
		for _, rel := range rels {
			if rel.From == from && rel.To == to {
				desc := fmt.Sprintf("Disconnect %s -> %s", from, to)
				if a, b, ok := s.shortPair(ctx, tx, from, to); ok {
					desc = fmt.Sprintf("Disconnect %s -> %s", a, b)
				}
				return desc, []domain.Change{domain.NewRelationshipDeleted(rel)}, nil
			}
		}
		return "", nil, fmt.Errorf("relationship %s -> %s: %w", from, to, domain.ErrNotFound)
	})
	return err
}

// SplitCell divides a cell in two. The first child inherits the parent's
// type, content and start flag; the second starts empty. The parent stays
// and gains both as children.
func (s *CellService) SplitCell(
	ctx context.Context,
	id domain.CellID,
	direction domain.SplitDirection,
	ratio float64,
) ([]domain.Cell, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("%w: unknown split direction %q", domain.ErrInvalidInput, direction)
	}

	var childIDs []domain.CellID
	_, err := s.mutate(ctx, domain.OperationSplit, func(tx driven.CellTx) (string, []domain.Change, error) {
		parent, err := tx.GetCell(ctx, id)
		if err != nil {
			return "", nil, err
		}
		first, second, err := parent.Bounds.Split(direction, ratio)
		if err != nil {
			return "", nil, err
		}
		content, err := tx.ReadContent(ctx, *parent)
		if err != nil {
			return "", nil, err
		}

		now := s.now()
		child := func(t domain.CellType, bounds domain.Rectangle, data []byte, pref *domain.ContentLocation) (domain.CellState, error) {
			shortID, err := s.nextShortID(ctx, tx)
			if err != nil {
				return domain.CellState{}, err
			}
			c := domain.Cell{
				ID:             newCellID(),
				ShortID:        shortID,
				Type:           t,
				Bounds:         bounds,
				Location:       domain.ResolveLocation(t.StorageRule(), int64(len(data)), pref),
				ContentHash:    domain.HashContent(data),
				ParentID:       ptr(parent.ID),
				SplitDirection: ptr(direction),
				CreatedAt:      now,
				ModifiedAt:     now,
			}
			if c.Location != domain.LocationInline {
				c.Location = domain.LocationExternal
				p := s.store.Layout().ExternalPath(c.ID, t)
				c.Path = &p
			}
			return stateOf(c, data), nil
		}

		var pref *domain.ContentLocation
		if parent.Location == domain.LocationInline || parent.Location == domain.LocationExternal {
			pref = ptr(parent.Location)
		}
		firstState, err := child(parent.Type, first, content, pref)
		if err != nil {
			return "", nil, err
		}
		firstState.Cell.Name = parent.Name
		firstState.Cell.Summary = parent.Summary
		firstState.Cell.PreviewMode = parent.PreviewMode
		firstState.Cell.IsStartPoint = parent.IsStartPoint

		secondState, err := child(domain.CellTypeText, second, []byte{}, ptr(domain.LocationInline))
		if err != nil {
			return "", nil, err
		}

		changes := []domain.Change{
			domain.NewCellSplit(stateOf(*parent, content), []domain.CellState{firstState, secondState}),
		}
		if parent.IsStartPoint {
			changes = append(changes, domain.NewCellModified(parent.ID,
				domain.CellDiff{IsStartPoint: ptr(true)}, domain.CellDiff{IsStartPoint: ptr(false)}))
		}
		childIDs = []domain.CellID{firstState.Cell.ID, secondState.Cell.ID}
		desc := fmt.Sprintf("Split %s %s into %s and %s", parent.ShortID, direction,
			firstState.Cell.ShortID, secondState.Cell.ShortID)
		return desc, changes, nil
	})
	if err != nil {
		return nil, err
	}

	children := make([]domain.Cell, 0, len(childIDs))
	for _, cid := range childIDs {
		c, err := s.store.GetCell(ctx, cid)
		if err != nil {
			return nil, err
		}
		children = append(children, *c)
	}
	return children, nil
}

// MergeCells replaces two or more cells with one covering their bounding
// box. Relationships touching the inputs are deleted, not re-pointed.
func (s *CellService) MergeCells(
	ctx context.Context,
	ids []domain.CellID,
	cellType domain.CellType,
	content []byte,
) (*domain.Cell, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two cells", domain.ErrInvalidInput)
	}
	seen := make(map[domain.CellID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: cell %s listed twice", domain.ErrInvalidInput, id)
		}
		seen[id] = true
	}
	if !cellType.IsValid() {
		return nil, fmt.Errorf("%w: unknown cell type %q", domain.ErrInvalidInput, cellType)
	}
	if content == nil {
		content = []byte{}
	}

	resultID := newCellID()
	_, err := s.mutate(ctx, domain.OperationMerge, func(tx driven.CellTx) (string, []domain.Change, error) {
		merged := make([]domain.CellState, 0, len(ids))
		bounds := make([]domain.Rectangle, 0, len(ids))
		relSeen := make(map[[2]domain.CellID]bool)
		var relChanges []domain.Change
		var startPoint bool
		shortIDs := make([]string, 0, len(ids))

		for _, id := range ids {
			cell, err := tx.GetCell(ctx, id)
			if err != nil {
				return "", nil, err
			}
			data, err := tx.ReadContent(ctx, *cell)
			if err != nil {
				return "", nil, err
			}
			rels, err := tx.RelationshipsOf(ctx, id)
			if err != nil {
				return "", nil, err
			}
			for _, rel := range rels {
				key := [2]domain.CellID{rel.From, rel.To}
				if !relSeen[key] {
					relSeen[key] = true
					relChanges = append(relChanges, domain.NewRelationshipDeleted(rel))
				}
			}
			merged = append(merged, stateOf(*cell, data))
			bounds = append(bounds, cell.Bounds)
			startPoint = startPoint || cell.IsStartPoint
			shortIDs = append(shortIDs, cell.ShortID)
		}

		shortID, err := s.nextShortID(ctx, tx)
		if err != nil {
			return "", nil, err
		}
		now := s.now()
		result := domain.Cell{
			ID:           resultID,
			ShortID:      shortID,
			Type:         cellType,
			Bounds:       domain.BoundingBox(bounds...),
			Location:     domain.ResolveLocation(cellType.StorageRule(), int64(len(content)), nil),
			ContentHash:  domain.HashContent(content),
			IsStartPoint: startPoint,
			CreatedAt:    now,
			ModifiedAt:   now,
		}
		if result.Location == domain.LocationExternal {
			p := s.store.Layout().ExternalPath(resultID, cellType)
			result.Path = &p
		}

		relChanges = append(relChanges, domain.NewCellMerged(merged, stateOf(result, content)))
		desc := fmt.Sprintf("Merge %s into %s", strings.Join(shortIDs, ", "), shortID)
		return desc, relChanges, nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetCell(ctx, resultID)
}

// ResolveRef accepts a ULID or a short id, ignoring case for short ids.
func (s *CellService) ResolveRef(ctx context.Context, ref string) (domain.CellID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty cell reference", domain.ErrInvalidInput)
	}
	if isCellID(ref) {
		cell, err := s.store.GetCell(ctx, domain.CellID(ref))
		if err == nil {
			return cell.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
	}
	cell, err := s.store.GetCellByShortID(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("cell %q: %w", ref, err)
	}
	return cell.ID, nil
}

// mutate runs fn in a transaction, applies the changes it returns and
// journals them. fn returning no changes is a no-op.
func (s *CellService) mutate(
	ctx context.Context,
	op domain.OperationKind,
	fn func(tx driven.CellTx) (string, []domain.Change, error),
) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.store.WithTx(ctx, func(tx driven.CellTx) error {
		desc, changes, err := fn(tx)
		if err != nil || len(changes) == 0 {
			return err
		}
		if err := applyChanges(ctx, tx, changes, true); err != nil {
			return err
		}
		snap, err = s.journal.Append(ctx, tx, op, desc, changes)
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap != nil {
		refreshCache(ctx, s.cache, snap)
	}
	return snap, nil
}

// placement decides where content of the given size lives after an edit.
// Remote and symlinked cells keep their location.
func (s *CellService) placement(cell domain.Cell, t domain.CellType, size int) (domain.ContentLocation, *string) {
	switch cell.Location {
	case domain.LocationRemote, domain.LocationSymlink:
		return cell.Location, cell.Path
	}
	pref := cell.Location
	loc := domain.ResolveLocation(t.StorageRule(), int64(size), &pref)
	switch loc {
	case domain.LocationInline:
		return loc, nil
	case domain.LocationExternal:
		if cell.Location == domain.LocationExternal && cell.Path != nil {
			return loc, cell.Path
		}
		p := s.store.Layout().ExternalPath(cell.ID, t)
		return loc, &p
	default:
		return cell.Location, cell.Path
	}
}

func (s *CellService) nextShortID(ctx context.Context, tx driven.CellTx) (string, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if s.shortIDs == nil {
		existing, err := tx.ShortIDs(ctx)
		if err != nil {
			return "", err
		}
		s.shortIDs = domain.ShortIDGeneratorFrom(existing)
	}
	return s.shortIDs.Next(), nil
}

func (s *CellService) shortPair(ctx context.Context, tx driven.CellTx, a, b domain.CellID) (string, string, bool) {
	ca, errA := tx.GetCell(ctx, a)
	cb, errB := tx.GetCell(ctx, b)
	if errA != nil || errB != nil {
		return "", "", false
	}
	return ca.ShortID, cb.ShortID, true
}

// refreshCache re-reads the cells a snapshot touched.
func refreshCache(ctx context.Context, cache *LazyCache, snap *domain.Snapshot) {
	if cache == nil {
		return
	}
	if err := cache.Refresh(ctx, snap.AffectedCells()...); err != nil {
		logger.Warn("refreshing cache after %q: %v", snap.Description, err)
	}
}

// stateOf captures a journal record of a cell. Inline text is carried by
// Content alone.
func stateOf(cell domain.Cell, content []byte) domain.CellState {
	c := cell.Clone()
	c.InlineText = nil
	c.Children = nil
	if content == nil {
		content = []byte{}
	}
	return domain.CellState{Cell: c, Content: content}
}

func ptr[T any](v T) *T {
	return &v
}
