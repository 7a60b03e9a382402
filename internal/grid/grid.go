// Package grid implements the spatial grid extension. It keeps a 2D
// placement for every stack of every container it is attached to, vetoes
// additions and splits that would not fit, and supports moving, swapping,
// and rotating placements.
//
// Every grid operation either completes or leaves the layout untouched.
package grid

import (
	"io"
	"log/slog"

	"github.com/mesh-intelligence/stockpile/pkg/spatial"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// ChangeType classifies a placement change.
type ChangeType uint8

// Placement change types.
const (
	ItemAdded ChangeType = iota
	ItemChanged
	ItemRemoved
)

func (t ChangeType) String() string {
	switch t {
	case ItemAdded:
		return "added"
	case ItemChanged:
		return "changed"
	default:
		return "removed"
	}
}

// Change reports one placement change to the observer.
type Change struct {
	Container types.ContainerID
	Type      ChangeType
	Placement Placement
}

// StackMerger merges two stacks of the same entry. A storage satisfies it.
type StackMerger interface {
	MergeStacks(entry types.EntryKey, from, to types.StackKey) (types.Event, error)
}

// Grid is the spatial grid extension.
type Grid struct {
	types.BaseExtension

	width, height int
	layouts       map[types.ContainerID]*layout
	merge         bool
	observer      func(Change)
	log           *slog.Logger
}

// Option configures a Grid.
type Option func(*Grid)

// WithMerge makes Move merge a stack into another stack of the same entry
// when it lands on it, using the container's StackMerger.
func WithMerge() Option {
	return func(g *Grid) { g.merge = true }
}

// WithObserver receives every placement change.
func WithObserver(fn func(Change)) Option {
	return func(g *Grid) { g.observer = fn }
}

// WithLogger sets the logger. The default discards.
func WithLogger(log *slog.Logger) Option {
	return func(g *Grid) {
		if log != nil {
			g.log = log
		}
	}
}

// New returns a grid extension giving every attached container a width by
// height grid.
func New(width, height int, opts ...Option) *Grid {
	g := &Grid{
		width:   width,
		height:  height,
		layouts: make(map[types.ContainerID]*layout),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Unique implements types.Unique.
func (g *Grid) Unique() bool { return true }

// ShapeOf returns the footprint of item: its Shape normalized to the origin
// when it is spatial.Shaped, a single cell otherwise.
func ShapeOf(item types.Item) spatial.Shape {
	if s, ok := item.(spatial.Shaped); ok {
		if shape := s.Shape(); !shape.Empty() {
			return shape.Normalize()
		}
	}
	return spatial.Cell()
}

func (g *Grid) notify(id types.ContainerID, t ChangeType, p Placement) {
	if g.observer != nil {
		g.observer(Change{Container: id, Type: t, Placement: p})
	}
}

// Initialize lays out every stack of c first-fit in key order.
func (g *Grid) Initialize(c types.Container) {
	if _, ok := g.layouts[c.ID()]; ok {
		return
	}
	g.layouts[c.ID()] = newLayout(g.width, g.height)
	c.ForEachKey(func(key types.EntryKey) {
		g.reconcile(c, key)
	})
}

func (g *Grid) Deinitialize(c types.Container) {
	delete(g.layouts, c.ID())
}

// AllowsAddition vetoes an addition whose new stacks cannot all be placed.
func (g *Grid) AllowsAddition(c types.Container, view types.StackView, behavior types.AddBehavior) types.Response {
	l, ok := g.layouts[c.ID()]
	if !ok {
		return types.NoExplicitResponse
	}
	plan := c.PreviewAddition(view, behavior)
	if plan.NewStacks == 0 {
		return types.NoExplicitResponse
	}
	trial := l.clone()
	shape := ShapeOf(view.Item)
	for i := 0; i < plan.NewStacks; i++ {
		origin, ok := trial.firstEmpty(shape)
		if !ok {
			return types.Disallowed
		}
		trial.occupy(&Placement{Key: types.InventoryKey{EntryKey: types.InvalidKey, StackKey: types.StackKey(-2 - i)}, Origin: origin, Shape: shape})
	}
	return types.NoExplicitResponse
}

// AllowsEdit vetoes a split when the new stack has nowhere to go.
func (g *Grid) AllowsEdit(c types.Container, key types.InventoryKey, edit types.Tag) types.Response {
	l, ok := g.layouts[c.ID()]
	if !ok || edit != types.TagEditSplit {
		return types.NoExplicitResponse
	}
	e, ok := c.Entry(key.EntryKey)
	if !ok {
		return types.NoExplicitResponse
	}
	if _, ok := l.firstEmpty(ShapeOf(e.Item)); !ok {
		return types.Disallowed
	}
	return types.NoExplicitResponse
}

func (g *Grid) PostAddition(c types.Container, event types.Event) {
	g.reconcile(c, event.EntryTouched)
}

func (g *Grid) PostRemoval(c types.Container, event types.Event) {
	g.reconcile(c, event.EntryTouched)
}

func (g *Grid) PostEntryChanged(c types.Container, event types.Event) {
	g.reconcile(c, event.EntryTouched)
}

// reconcile makes the placements of entry match its stacks: placements of
// vanished stacks are dropped and new stacks are placed first-fit.
func (g *Grid) reconcile(c types.Container, entry types.EntryKey) {
	l, ok := g.layouts[c.ID()]
	if !ok {
		return
	}
	e, exists := c.Entry(entry)
	for key := range l.placements {
		if key.EntryKey != entry {
			continue
		}
		if !exists || !e.HasStack(key.StackKey) {
			p, _ := l.remove(key)
			g.notify(c.ID(), ItemRemoved, *p)
		}
	}
	if !exists {
		return
	}
	shape := ShapeOf(e.Item)
	for _, st := range e.Stacks {
		key := types.InventoryKey{EntryKey: entry, StackKey: st.Key}
		if _, ok := l.placements[key]; ok {
			continue
		}
		origin, ok := l.firstEmpty(shape)
		if !ok {
			g.log.Warn("no room for stack",
				"container", string(c.ID()),
				"stack", key.String())
			continue
		}
		p := &Placement{Key: key, Origin: origin, Shape: shape}
		l.insert(p)
		g.notify(c.ID(), ItemAdded, *p)
	}
}

// Size returns the grid dimensions of container id.
func (g *Grid) Size(id types.ContainerID) (width, height int, ok bool) {
	l, ok := g.layouts[id]
	if !ok {
		return 0, 0, false
	}
	return l.width, l.height, true
}

// Fits reports whether shape rotated by r and placed at origin lies inside
// the grid and overlaps no placement except those in excluding.
func (g *Grid) Fits(id types.ContainerID, shape spatial.Shape, r spatial.Rotation, origin spatial.Point, excluding ...types.InventoryKey) bool {
	l, ok := g.layouts[id]
	if !ok {
		return false
	}
	return l.fits(shape.Rotate(r).Translate(origin), excluding...)
}

// FindFirstEmpty returns the first origin, scanning rows from (0,0), at
// which shape fits unrotated.
func (g *Grid) FindFirstEmpty(id types.ContainerID, shape spatial.Shape) (spatial.Point, bool) {
	l, ok := g.layouts[id]
	if !ok {
		return spatial.Point{}, false
	}
	return l.firstEmpty(shape)
}

// GetPlacement returns the placement of a stack.
func (g *Grid) GetPlacement(id types.ContainerID, key types.InventoryKey) (Placement, bool) {
	l, ok := g.layouts[id]
	if !ok {
		return Placement{}, false
	}
	p, ok := l.placements[key]
	if !ok {
		return Placement{}, false
	}
	return *p, true
}

// Placements returns every placement of container id in key order.
func (g *Grid) Placements(id types.ContainerID) []Placement {
	l, ok := g.layouts[id]
	if !ok {
		return nil
	}
	return l.sorted()
}

// ViewAt returns the stack covering p.
func (g *Grid) ViewAt(id types.ContainerID, p spatial.Point) (types.InventoryKey, bool) {
	l, ok := g.layouts[id]
	if !ok {
		return types.InventoryKey{}, false
	}
	key, ok := l.cells[p]
	return key, ok
}

// IsOccupied reports whether any placement covers p.
func (g *Grid) IsOccupied(id types.ContainerID, p spatial.Point) bool {
	_, ok := g.ViewAt(id, p)
	return ok
}

// Move places the stack at key with its origin at target. When the new
// cells overlap exactly one other placement, the two are swapped: the other
// placement shifts by the opposite offset, and both must fit afterwards
// without touching each other. With WithMerge, landing on another stack of
// the same entry merges into it instead; a merge that moves nothing or is
// refused falls back to the swap.
func (g *Grid) Move(c types.Container, key types.InventoryKey, target spatial.Point) bool {
	l, ok := g.layouts[c.ID()]
	if !ok {
		return false
	}
	p, ok := l.placements[key]
	if !ok {
		return false
	}
	if target == p.Origin {
		return true
	}
	moved := p.At(target, p.Rotation)
	for _, pt := range moved.Points {
		if !pt.In(l.width, l.height) {
			return false
		}
	}
	hit := l.colliders(moved, key)
	switch len(hit) {
	case 0:
		l.vacate(p)
		p.Origin = target
		l.occupy(p)
		g.notify(c.ID(), ItemChanged, *p)
		return true
	case 1:
	default:
		return false
	}

	other := l.placements[hit[0]]
	if g.merge && other.Key.EntryKey == key.EntryKey {
		if m, ok := c.(StackMerger); ok {
			ev, err := m.MergeStacks(key.EntryKey, key.StackKey, other.Key.StackKey)
			if err == nil && ev.Amount > 0 {
				return true
			}
		}
	}
	return g.swap(c.ID(), l, p, other, target)
}

// swap moves p to target and other by the opposite offset if both fit.
func (g *Grid) swap(id types.ContainerID, l *layout, p, other *Placement, target spatial.Point) bool {
	offset := target.Sub(p.Origin)
	otherTarget := other.Origin.Sub(offset)
	moved := p.At(target, p.Rotation)
	otherMoved := other.At(otherTarget, other.Rotation)
	pair := []types.InventoryKey{p.Key, other.Key}
	if !l.fits(moved, pair...) || !l.fits(otherMoved, pair...) || moved.Overlaps(otherMoved) {
		return false
	}
	l.vacate(p)
	l.vacate(other)
	p.Origin, other.Origin = target, otherTarget
	l.occupy(p)
	l.occupy(other)
	g.notify(id, ItemChanged, *p)
	g.notify(id, ItemChanged, *other)
	return true
}

// Rotate turns the placement at key a quarter turn clockwise if the rotated
// shape fits at the same origin.
func (g *Grid) Rotate(c types.Container, key types.InventoryKey) bool {
	l, ok := g.layouts[c.ID()]
	if !ok {
		return false
	}
	p, ok := l.placements[key]
	if !ok {
		return false
	}
	next := p.Rotation.Next()
	if !l.fits(p.At(p.Origin, next), key) {
		return false
	}
	l.vacate(p)
	p.Rotation = next
	l.occupy(p)
	g.notify(c.ID(), ItemChanged, *p)
	return true
}

// SetGridSize resizes the grid of container id. It fails, changing nothing,
// when the size is not positive or a placement would fall outside it.
func (g *Grid) SetGridSize(id types.ContainerID, width, height int) bool {
	l, ok := g.layouts[id]
	if !ok || width <= 0 || height <= 0 {
		return false
	}
	for _, p := range l.placements {
		for _, pt := range p.Cells().Points {
			if !pt.In(width, height) {
				return false
			}
		}
	}
	l.width, l.height = width, height
	l.cells = make(map[spatial.Point]types.InventoryKey, len(l.cells))
	for _, p := range l.placements {
		l.occupy(p)
	}
	return true
}

// Overlapping reports whether any two placements of container id share a
// cell.
func (g *Grid) Overlapping(id types.ContainerID) bool {
	l, ok := g.layouts[id]
	if !ok {
		return false
	}
	seen := make(map[spatial.Point]struct{})
	for _, p := range l.placements {
		for _, pt := range p.Cells().Points {
			if _, dup := seen[pt]; dup {
				return true
			}
			seen[pt] = struct{}{}
		}
	}
	return false
}
