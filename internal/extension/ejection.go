package extension

import "github.com/mesh-intelligence/stockpile/pkg/types"

// Ejection allows removals with the Ejection reason and queues what was
// ejected until a consumer drains it.
type Ejection struct {
	types.BaseExtension

	pending map[types.ContainerID][]types.ItemStack
	amounts map[types.ContainerID]int
	reason  types.Tag
}

// NewEjection returns an Ejection extension.
func NewEjection() *Ejection {
	return &Ejection{
		pending: make(map[types.ContainerID][]types.ItemStack),
		amounts: make(map[types.ContainerID]int),
		reason:  types.TagRemovalEjection,
	}
}

// Unique implements types.Unique.
func (e *Ejection) Unique() bool { return true }

func (e *Ejection) Deinitialize(c types.Container) {
	delete(e.pending, c.ID())
	delete(e.amounts, c.ID())
}

func (e *Ejection) AllowsRemoval(_ types.Container, _ types.EntryKey, reason types.Tag) types.Response {
	if reason == e.reason {
		return types.Allowed
	}
	return types.NoExplicitResponse
}

func (e *Ejection) PostRemoval(c types.Container, event types.Event) {
	e.collect(c, event)
}

func (e *Ejection) PostEntryChanged(c types.Container, event types.Event) {
	e.collect(c, event)
}

func (e *Ejection) collect(c types.Container, event types.Event) {
	if event.Type != e.reason || !event.Success || event.Item == nil || event.Amount <= 0 {
		return
	}
	if e.pending == nil {
		e.pending = make(map[types.ContainerID][]types.ItemStack)
		e.amounts = make(map[types.ContainerID]int)
	}
	e.pending[c.ID()] = append(e.pending[c.ID()], types.ItemStack{Item: event.Item, Copies: event.Amount})
	e.amounts[c.ID()] += event.Amount
}

// Pending returns the number of ejected copies waiting for container id.
func (e *Ejection) Pending(id types.ContainerID) int {
	return e.amounts[id]
}

// Drain returns and clears the stacks ejected from container id.
func (e *Ejection) Drain(id types.ContainerID) []types.ItemStack {
	out := e.pending[id]
	delete(e.pending, id)
	delete(e.amounts, id)
	return out
}
