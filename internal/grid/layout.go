package grid

import (
	"slices"

	"github.com/mesh-intelligence/stockpile/pkg/spatial"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Placement positions one stack on the grid. Shape is the stack's
// unrotated footprint; Cells applies Rotation and Origin to it.
type Placement struct {
	Key      types.InventoryKey `json:"key"`
	Origin   spatial.Point      `json:"origin"`
	Rotation spatial.Rotation   `json:"rotation"`
	Shape    spatial.Shape      `json:"shape"`
}

// Cells returns the grid cells the placement covers.
func (p Placement) Cells() spatial.Shape {
	return p.At(p.Origin, p.Rotation)
}

// At returns the cells the placement would cover at origin and rotation.
func (p Placement) At(origin spatial.Point, r spatial.Rotation) spatial.Shape {
	return p.Shape.Rotate(r).Translate(origin)
}

// layout is the grid state of one container. The placement list is
// authoritative; cells is an occupancy index rebuilt from it.
type layout struct {
	width, height int
	placements    map[types.InventoryKey]*Placement
	cells         map[spatial.Point]types.InventoryKey
}

func newLayout(w, h int) *layout {
	return &layout{
		width:      w,
		height:     h,
		placements: make(map[types.InventoryKey]*Placement),
		cells:      make(map[spatial.Point]types.InventoryKey),
	}
}

// fits reports whether cells lie inside the grid and touch no placement
// other than those in excluding.
func (l *layout) fits(cells spatial.Shape, excluding ...types.InventoryKey) bool {
	for _, pt := range cells.Points {
		if !pt.In(l.width, l.height) {
			return false
		}
		if owner, ok := l.cells[pt]; ok && !slices.Contains(excluding, owner) {
			return false
		}
	}
	return true
}

// firstEmpty scans origins row by row from (0,0) and returns the first one
// at which shape fits unrotated.
func (l *layout) firstEmpty(shape spatial.Shape) (spatial.Point, bool) {
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			origin := spatial.Point{X: x, Y: y}
			if l.fits(shape.Translate(origin)) {
				return origin, true
			}
		}
	}
	return spatial.Point{}, false
}

func (l *layout) occupy(p *Placement) {
	for _, pt := range p.Cells().Points {
		l.cells[pt] = p.Key
	}
}

func (l *layout) vacate(p *Placement) {
	for _, pt := range p.Cells().Points {
		if l.cells[pt] == p.Key {
			delete(l.cells, pt)
		}
	}
}

func (l *layout) insert(p *Placement) {
	l.placements[p.Key] = p
	l.occupy(p)
}

func (l *layout) remove(key types.InventoryKey) (*Placement, bool) {
	p, ok := l.placements[key]
	if !ok {
		return nil, false
	}
	l.vacate(p)
	delete(l.placements, key)
	return p, true
}

// colliders returns the placements other than self that cells touch.
func (l *layout) colliders(cells spatial.Shape, self types.InventoryKey) []types.InventoryKey {
	var out []types.InventoryKey
	for _, pt := range cells.Points {
		owner, ok := l.cells[pt]
		if ok && owner != self && !slices.Contains(out, owner) {
			out = append(out, owner)
		}
	}
	return out
}

// sorted returns copies of the placements in key order.
func (l *layout) sorted() []Placement {
	out := make([]Placement, 0, len(l.placements))
	for _, p := range l.placements {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Placement) int { return a.Key.Compare(b.Key) })
	return out
}

// clone copies the occupancy index for trial placements.
func (l *layout) clone() *layout {
	c := newLayout(l.width, l.height)
	for k, p := range l.placements {
		c.placements[k] = p
	}
	for pt, k := range l.cells {
		c.cells[pt] = k
	}
	return c
}
