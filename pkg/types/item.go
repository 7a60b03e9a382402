package types

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/spatial"
)

// Unlimited marks a stack limit or a removal amount with no upper bound.
const Unlimited = -1

// ContainerID identifies a container instance. Extensions shared between
// containers index their per-container state by it.
type ContainerID string

// Item is the payload stored in entries. Mutable items carry per-instance
// data; they never merge with other items and are stored one copy per stack.
type Item interface {
	Mutable() bool
}

// StackLimited items declare how many copies fit in one stack. A limit of
// zero defers to the container default.
type StackLimited interface {
	StackLimit() int
}

// Equivalent items decide for themselves whether another item may share an
// entry with them.
type Equivalent interface {
	Equivalent(other Item) bool
}

// Possessable items are told when a container takes and gives up ownership.
// Release is called exactly once for each Possess.
type Possessable interface {
	Possess(owner ContainerID)
	Release(owner ContainerID)
}

// ContainerHolder items hold containers of their own. Adding such an item to
// one of the containers it holds is rejected.
type ContainerHolder interface {
	Holds(id ContainerID) bool
}

// Weighted items report the weight and volume that a stack of the given
// number of copies takes up.
type Weighted interface {
	WeightOfStack(copies int) int
	VolumeOfStack(copies int) int
}

// ItemCapacity is the physical footprint of one copy. Efficiency scales the
// volume of every copy after the first; 1 packs nothing tighter, 0.5 halves
// the extra copies.
type ItemCapacity struct {
	Weight     int     `json:"weight,omitempty" yaml:"weight,omitempty"`
	Volume     int     `json:"volume,omitempty" yaml:"volume,omitempty"`
	Efficiency float64 `json:"efficiency,omitempty" yaml:"efficiency,omitempty"`
}

// WeightOfStack implements Weighted.
func (c ItemCapacity) WeightOfStack(copies int) int {
	return c.Weight * copies
}

// VolumeOfStack implements Weighted. A zero Efficiency counts as 1.
func (c ItemCapacity) VolumeOfStack(copies int) int {
	if copies <= 0 {
		return 0
	}
	eff := c.Efficiency
	if eff == 0 {
		eff = 1
	}
	return c.Volume + int(float64(c.Volume*(copies-1))*eff)
}

// CapacityOf returns the capacity of item, if it has one.
func CapacityOf(item Item) (Weighted, bool) {
	if b, ok := item.(*BasicItem); ok {
		if b.Capacity == nil {
			return nil, false
		}
		return *b.Capacity, true
	}
	w, ok := item.(Weighted)
	return w, ok
}

// Comparator decides whether two immutable items can share an entry.
type Comparator func(a, b Item) bool

// DefaultComparator treats items as equal when they are the same value or
// when a reports itself Equivalent to b.
func DefaultComparator(a, b Item) bool {
	if a == nil || b == nil {
		return false
	}
	if eq, ok := a.(Equivalent); ok {
		return eq.Equivalent(b)
	}
	return a == b
}

// StackLimitOf returns the per-stack limit for item. Mutable items are
// capped at one copy per stack; other items fall back to def.
func StackLimitOf(item Item, def int) int {
	if item.Mutable() {
		return 1
	}
	if l, ok := item.(StackLimited); ok {
		if n := l.StackLimit(); n != 0 {
			return n
		}
	}
	return def
}

// ItemStack is a quantity of one item travelling outside a container.
type ItemStack struct {
	Item   Item
	Copies int
}

// StackView is a read-only view of an item quantity.
type StackView struct {
	Item   Item
	Copies int
}

// BasicItem is a plain, serializable item definition.
type BasicItem struct {
	Name      string          `json:"name" yaml:"name"`
	Limit     int             `json:"stack_limit,omitempty" yaml:"stack_limit,omitempty"`
	IsMutable bool            `json:"mutable,omitempty" yaml:"mutable,omitempty"`
	Cells     []spatial.Point `json:"cells,omitempty" yaml:"cells,omitempty"`
	Capacity  *ItemCapacity   `json:"capacity,omitempty" yaml:"capacity,omitempty"`
}

// Mutable implements Item.
func (b *BasicItem) Mutable() bool { return b.IsMutable }

// StackLimit implements StackLimited. Zero defers to the container default
// and a negative limit means Unlimited.
func (b *BasicItem) StackLimit() int {
	if b.Limit < 0 {
		return Unlimited
	}
	return b.Limit
}

// Equivalent implements Equivalent by name.
func (b *BasicItem) Equivalent(other Item) bool {
	o, ok := other.(*BasicItem)
	if !ok {
		return false
	}
	if b == o {
		return true
	}
	return !b.IsMutable && !o.IsMutable && b.Name == o.Name
}

// Shape implements spatial.Shaped. Items without cells occupy one cell.
func (b *BasicItem) Shape() spatial.Shape {
	if len(b.Cells) == 0 {
		return spatial.Cell()
	}
	return spatial.Shape{Points: append([]spatial.Point(nil), b.Cells...)}
}

func (b *BasicItem) String() string { return b.Name }

// ItemCodec converts items to and from their snapshot form.
type ItemCodec interface {
	EncodeItem(Item) (json.RawMessage, error)
	DecodeItem(json.RawMessage) (Item, error)
}

// JSONItemCodec stores BasicItem values as JSON objects.
type JSONItemCodec struct{}

// EncodeItem implements ItemCodec.
func (JSONItemCodec) EncodeItem(item Item) (json.RawMessage, error) {
	b, ok := item.(*BasicItem)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a BasicItem", ErrInvalidItem, item)
	}
	return json.Marshal(b)
}

// DecodeItem implements ItemCodec.
func (JSONItemCodec) DecodeItem(raw json.RawMessage) (Item, error) {
	var b BasicItem
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if b.Name == "" {
		return nil, fmt.Errorf("%w: item without name", ErrInvalidItem)
	}
	return &b, nil
}
