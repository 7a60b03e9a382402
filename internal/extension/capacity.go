package extension

import "github.com/mesh-intelligence/stockpile/pkg/types"

// Capacity caps the total weight and volume of the items in a container.
// Items without a capacity always fit. A maximum of zero or less disables
// that check.
type Capacity struct {
	types.BaseExtension

	MaxWeight int
	MaxVolume int

	states map[types.ContainerID]*capacityState
}

// CapacityState is the load of one container.
type CapacityState struct {
	Weight     int
	Volume     int
	OverWeight bool
	OverVolume bool
}

type capacityState struct {
	CapacityState
	entries map[types.EntryKey]load
}

type load struct{ weight, volume int }

// NewCapacity returns a Capacity with the given maximums.
func NewCapacity(maxWeight, maxVolume int) *Capacity {
	return &Capacity{
		MaxWeight: maxWeight,
		MaxVolume: maxVolume,
		states:    make(map[types.ContainerID]*capacityState),
	}
}

func (x *Capacity) Initialize(c types.Container) {
	if x.states == nil {
		x.states = make(map[types.ContainerID]*capacityState)
	}
	st := &capacityState{entries: make(map[types.EntryKey]load)}
	x.states[c.ID()] = st
	c.ForEachKey(func(key types.EntryKey) {
		st.update(c, key)
	})
	x.check(st)
}

func (x *Capacity) Deinitialize(c types.Container) {
	delete(x.states, c.ID())
}

func (x *Capacity) AllowsAddition(c types.Container, view types.StackView, _ types.AddBehavior) types.Response {
	st, ok := x.states[c.ID()]
	if !ok {
		return types.NoExplicitResponse
	}
	w, ok := types.CapacityOf(view.Item)
	if !ok {
		return types.Allowed
	}
	if x.MaxWeight > 0 && st.Weight+w.WeightOfStack(view.Copies) > x.MaxWeight {
		return types.Disallowed
	}
	if x.MaxVolume > 0 && st.Volume+w.VolumeOfStack(view.Copies) > x.MaxVolume {
		return types.Disallowed
	}
	return types.Allowed
}

func (x *Capacity) PostAddition(c types.Container, event types.Event) {
	x.refresh(c, event.EntryTouched)
}

func (x *Capacity) PostRemoval(c types.Container, event types.Event) {
	x.refresh(c, event.EntryTouched)
}

func (x *Capacity) PostEntryChanged(c types.Container, event types.Event) {
	x.refresh(c, event.EntryTouched)
}

func (x *Capacity) refresh(c types.Container, key types.EntryKey) {
	if st, ok := x.states[c.ID()]; ok {
		st.update(c, key)
		x.check(st)
	}
}

func (x *Capacity) check(st *capacityState) {
	st.OverWeight = x.MaxWeight > 0 && st.Weight > x.MaxWeight
	st.OverVolume = x.MaxVolume > 0 && st.Volume > x.MaxVolume
}

// update replaces the cached load of key. Weight is taken over the whole
// entry and volume per stack, so splitting a stack can grow the volume.
func (st *capacityState) update(c types.Container, key types.EntryKey) {
	prev := st.entries[key]
	e, ok := c.Entry(key)
	if !ok {
		st.Weight -= prev.weight
		st.Volume -= prev.volume
		delete(st.entries, key)
		return
	}
	var now load
	if w, ok := types.CapacityOf(e.Item); ok {
		now.weight = w.WeightOfStack(e.StackSum())
		for _, s := range e.Stacks {
			now.volume += w.VolumeOfStack(s.Stack)
		}
	}
	st.entries[key] = now
	st.Weight += now.weight - prev.weight
	st.Volume += now.volume - prev.volume
}

// State returns the load of container id.
func (x *Capacity) State(id types.ContainerID) CapacityState {
	if st, ok := x.states[id]; ok {
		return st.CapacityState
	}
	return CapacityState{}
}

// RemainingWeight returns how much more weight fits, or Unlimited.
func (x *Capacity) RemainingWeight(id types.ContainerID) int {
	if x.MaxWeight <= 0 {
		return types.Unlimited
	}
	return max(x.MaxWeight-x.State(id).Weight, 0)
}

// RemainingVolume returns how much more volume fits, or Unlimited.
func (x *Capacity) RemainingVolume(id types.ContainerID) int {
	if x.MaxVolume <= 0 {
		return types.Unlimited
	}
	return max(x.MaxVolume-x.State(id).Volume, 0)
}
