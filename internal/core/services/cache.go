package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var _ driving.CellReader = (*LazyCache)(nil)

// EntryState is the content load state of a cached cell.
type EntryState int

// Entry states. Metadata is always resident; only content moves through these.
const (
	EntryUnloaded EntryState = iota
	EntryLoading
	EntryLoaded
	EntryFailed
)

// String returns the string representation.
func (s EntryState) String() string {
	switch s {
	case EntryUnloaded:
		return "unloaded"
	case EntryLoading:
		return "loading"
	case EntryLoaded:
		return "loaded"
	case EntryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CacheStats counts content cache activity.
type CacheStats struct {
	Cells     int
	Resident  int
	Hits      int64
	Misses    int64
	Evictions int64
}

type cacheEntry struct {
	cell  domain.Cell
	state EntryState
	err   error

	// gen changes on every invalidation so a load that started earlier
	// cannot publish stale content.
	gen uint64
}

// LazyCache keeps all cell metadata in memory and loads content on first
// access. At most capacity payloads stay resident; the least recently
// used is evicted and reloads on next access.
type LazyCache struct {
	store driven.CellStore

	mu       sync.RWMutex
	entries  map[domain.CellID]*cacheEntry
	rels     []domain.Relationship
	outgoing map[domain.CellID][]domain.CellID
	incoming map[domain.CellID][]domain.CellID

	content *ttlcache.Cache[domain.CellID, []byte]
	loads   singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLazyCache creates an empty cache. Call Load to populate metadata.
func NewLazyCache(store driven.CellStore, capacity int) *LazyCache {
	if capacity < 1 {
		capacity = domain.DefaultSettings().Cache.Capacity
	}
	c := &LazyCache{
		store:    store,
		entries:  make(map[domain.CellID]*cacheEntry),
		outgoing: make(map[domain.CellID][]domain.CellID),
		incoming: make(map[domain.CellID][]domain.CellID),
		content: ttlcache.New[domain.CellID, []byte](
			ttlcache.WithCapacity[domain.CellID, []byte](uint64(capacity)),
		),
	}
	c.content.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[domain.CellID, []byte]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			c.evictions.Add(1)
			logger.Debug("cache: evicted content of %s", item.Key())
		}
	})
	return c
}

// Load reads every cell's metadata and all relationships. It runs in two
// passes: first every cell by id, then parent/child links, so children
// may precede their parents in storage order.
func (c *LazyCache) Load(ctx context.Context) error {
	cells, err := c.store.ListCells(ctx)
	if err != nil {
		return fmt.Errorf("loading cells: %w", err)
	}
	rels, err := c.store.ListRelationships(ctx)
	if err != nil {
		return fmt.Errorf("loading relationships: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[domain.CellID]*cacheEntry, len(cells))
	for _, cell := range cells {
		c.entries[cell.ID] = &cacheEntry{cell: cell}
	}
	c.linkChildren()
	c.setRelationships(rels)
	c.content.DeleteAll()

	logger.Debug("cache: loaded %d cells, %d relationships", len(cells), len(rels))
	return nil
}

// Get returns a cell's metadata.
func (c *LazyCache) Get(id domain.CellID) (domain.Cell, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return domain.Cell{}, fmt.Errorf("cell %s: %w", id, domain.ErrNotFound)
	}
	return e.cell.Clone(), nil
}

// State returns the content state of a cell and the last load error.
func (c *LazyCache) State(id domain.CellID) (EntryState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return EntryUnloaded, fmt.Errorf("cell %s: %w", id, domain.ErrNotFound)
	}
	if e.state == EntryLoaded && !c.content.Has(id) {
		return EntryUnloaded, nil
	}
	return e.state, e.err
}

// Content returns a cell's content, loading it on first access.
// Concurrent callers for the same cell share one load.
func (c *LazyCache) Content(ctx context.Context, id domain.CellID) ([]byte, error) {
	c.mu.RLock()
	_, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cell %s: %w", id, domain.ErrNotFound)
	}

	if item := c.content.Get(id); item != nil {
		c.hits.Add(1)
		return slices.Clone(item.Value()), nil
	}
	c.misses.Add(1)

	v, err, _ := c.loads.Do(string(id), func() (any, error) {
		// A flight that finished between the miss and Do already filled it.
		if item := c.content.Get(id); item != nil {
			return item.Value(), nil
		}
		return c.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]byte)), nil
}

func (c *LazyCache) load(ctx context.Context, id domain.CellID) ([]byte, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("cell %s: %w", id, domain.ErrNotFound)
	}
	e.state = EntryLoading
	gen := e.gen
	cell := e.cell.Clone()
	c.mu.Unlock()

	data, err := c.store.ReadContent(ctx, cell)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok = c.entries[id]
	if !ok || e.gen != gen {
		// Invalidated mid-load: hand the bytes to this caller only.
		return data, err
	}
	if err != nil {
		e.state = EntryFailed
		e.err = err
		logger.Warn("cache: loading %s failed: %v", cell.ShortID, err)
		return nil, err
	}
	c.content.Set(id, data, ttlcache.NoTTL)
	e.state = EntryLoaded
	e.err = nil
	return data, nil
}

// Invalidate drops a cell's resident content so the next access reloads it.
func (c *LazyCache) Invalidate(id domain.CellID) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		e.gen++
		e.state = EntryUnloaded
		e.err = nil
	}
	c.mu.Unlock()

	c.content.Delete(id)
	c.loads.Forget(string(id))
}

// Refresh re-reads metadata for ids after a mutation, dropping cells that
// no longer exist, and reloads relationships.
func (c *LazyCache) Refresh(ctx context.Context, ids ...domain.CellID) error {
	// Content goes first so a failed metadata read never leaves stale bytes.
	for _, id := range ids {
		c.Invalidate(id)
	}

	updated := make(map[domain.CellID]*domain.Cell, len(ids))
	for _, id := range ids {
		cell, err := c.store.GetCell(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			updated[id] = nil
		case err != nil:
			return fmt.Errorf("refreshing cell %s: %w", id, err)
		default:
			updated[id] = cell
		}
	}
	rels, err := c.store.ListRelationships(ctx)
	if err != nil {
		return fmt.Errorf("refreshing relationships: %w", err)
	}

	c.mu.Lock()
	for id, cell := range updated {
		if cell == nil {
			delete(c.entries, id)
			continue
		}
		if e, ok := c.entries[id]; ok {
			e.cell = *cell
			e.gen++
			e.state = EntryUnloaded
			e.err = nil
		} else {
			c.entries[id] = &cacheEntry{cell: *cell}
		}
	}
	c.linkChildren()
	c.setRelationships(rels)
	c.mu.Unlock()

	for id := range updated {
		c.content.Delete(id)
		c.loads.Forget(string(id))
	}
	return nil
}

// List returns every cell, oldest first.
func (c *LazyCache) List() []domain.Cell {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cells := make([]domain.Cell, 0, len(c.entries))
	for _, e := range c.entries {
		cells = append(cells, e.cell.Clone())
	}
	slices.SortFunc(cells, func(a, b domain.Cell) int {
		return compareIDs(a.ID, b.ID)
	})
	return cells
}

// Relationships returns every relationship.
func (c *LazyCache) Relationships() []domain.Relationship {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.rels)
}

// Outgoing returns the cells id points to.
func (c *LazyCache) Outgoing(id domain.CellID) []domain.CellID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.outgoing[id])
}

// Incoming returns the cells pointing to id.
func (c *LazyCache) Incoming(id domain.CellID) []domain.CellID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.incoming[id])
}

// Stats returns cache counters.
func (c *LazyCache) Stats() CacheStats {
	c.mu.RLock()
	cells := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Cells:     cells,
		Resident:  c.content.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// linkChildren rebuilds every Children list from ParentID. Caller holds mu.
func (c *LazyCache) linkChildren() {
	for _, e := range c.entries {
		e.cell.Children = nil
	}
	for _, e := range c.entries {
		if e.cell.ParentID == nil {
			continue
		}
		if parent, ok := c.entries[*e.cell.ParentID]; ok {
			parent.cell.Children = append(parent.cell.Children, e.cell.ID)
		}
	}
	for _, e := range c.entries {
		slices.SortFunc(e.cell.Children, compareIDs)
	}
}

// setRelationships rebuilds the adjacency maps. Caller holds mu.
func (c *LazyCache) setRelationships(rels []domain.Relationship) {
	c.rels = rels
	c.outgoing = make(map[domain.CellID][]domain.CellID)
	c.incoming = make(map[domain.CellID][]domain.CellID)
	for _, r := range rels {
		c.outgoing[r.From] = append(c.outgoing[r.From], r.To)
		c.incoming[r.To] = append(c.incoming[r.To], r.From)
	}
}

func compareIDs(a, b domain.CellID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
