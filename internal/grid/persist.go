package grid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// ErrInvalidLayout is returned when saved grid data does not fit the
// container it is loaded into.
var ErrInvalidLayout = errors.New("invalid grid layout")

type saveData struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Placements []Placement `json:"placements"`
}

// SaveKey implements types.Persistent.
func (g *Grid) SaveKey() string { return "grid" }

// MakeSaveData implements types.Persistent.
func (g *Grid) MakeSaveData(c types.Container) (json.RawMessage, error) {
	l, ok := g.layouts[c.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: container %s is not attached", ErrInvalidLayout, c.ID())
	}
	return json.Marshal(saveData{Width: l.width, Height: l.height, Placements: l.sorted()})
}

// LoadSaveData implements types.Persistent. Saved placements replace the
// current layout; stacks without a saved placement are then placed
// first-fit. Placements for unknown stacks, or that overlap or leave the
// grid, fail the load and keep the current layout.
func (g *Grid) LoadSaveData(c types.Container, data json.RawMessage) error {
	var sd saveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	if sd.Width <= 0 || sd.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidLayout, sd.Width, sd.Height)
	}
	l := newLayout(sd.Width, sd.Height)
	for _, p := range sd.Placements {
		e, ok := c.Entry(p.Key.EntryKey)
		if !ok || !e.HasStack(p.Key.StackKey) {
			return fmt.Errorf("%w: no stack %s", ErrInvalidLayout, p.Key)
		}
		if _, dup := l.placements[p.Key]; dup || !p.Rotation.Valid() || p.Shape.Empty() {
			return fmt.Errorf("%w: bad placement for %s", ErrInvalidLayout, p.Key)
		}
		if !l.fits(p.Cells()) {
			return fmt.Errorf("%w: %s does not fit", ErrInvalidLayout, p.Key)
		}
		l.insert(&p)
	}
	g.layouts[c.ID()] = l
	c.ForEachKey(func(key types.EntryKey) {
		g.reconcile(c, key)
	})
	return nil
}
