package extension

import (
	"slices"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// fakeContainer is a minimal types.Container for exercising extensions
// without a storage.
type fakeContainer struct {
	id      types.ContainerID
	entries map[types.EntryKey]types.Entry
	plan    types.AdditionPlan
}

func newFake(id string) *fakeContainer {
	return &fakeContainer{
		id:      types.ContainerID(id),
		entries: make(map[types.EntryKey]types.Entry),
		plan:    types.AdditionPlan{Entry: types.InvalidKey, NewStacks: 1},
	}
}

func (f *fakeContainer) put(key types.EntryKey, counts ...int) {
	e := types.Entry{Item: &types.BasicItem{Name: "x"}, Limit: types.Unlimited}
	for i, n := range counts {
		e.Stacks = append(e.Stacks, types.KeyedStack{Key: types.StackKey(int(key)*10 + i), Stack: n})
	}
	f.entries[key] = e
}

func (f *fakeContainer) ID() types.ContainerID { return f.id }

func (f *fakeContainer) IsValidKey(key types.EntryKey) bool {
	_, ok := f.entries[key]
	return ok
}

func (f *fakeContainer) ForEachKey(fn func(types.EntryKey)) {
	keys := make([]types.EntryKey, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fn(k)
	}
}

func (f *fakeContainer) Copies(key types.EntryKey) int {
	e, ok := f.entries[key]
	if !ok {
		return 0
	}
	return e.StackSum()
}

func (f *fakeContainer) Entry(key types.EntryKey) (types.Entry, bool) {
	e, ok := f.entries[key]
	return e.Clone(), ok
}

func (f *fakeContainer) PreviewAddition(types.StackView, types.AddBehavior) types.AdditionPlan {
	return f.plan
}

// voter casts a fixed vote and counts the calls it receives.
type voter struct {
	types.BaseExtension
	vote  types.Response
	calls int
	inits []types.ContainerID
}

func (v *voter) Initialize(c types.Container) { v.inits = append(v.inits, c.ID()) }

func (v *voter) Deinitialize(c types.Container) {
	v.inits = slices.DeleteFunc(v.inits, func(id types.ContainerID) bool { return id == c.ID() })
}

func (v *voter) AllowsAddition(types.Container, types.StackView, types.AddBehavior) types.Response {
	v.calls++
	return v.vote
}

func (v *voter) AllowsRemoval(types.Container, types.EntryKey, types.Tag) types.Response {
	v.calls++
	return v.vote
}

func (v *voter) AllowsEdit(types.Container, types.InventoryKey, types.Tag) types.Response {
	v.calls++
	return v.vote
}

func event(tag types.Tag, key types.EntryKey, amount int) types.Event {
	e := types.NewEvent(tag)
	e.Success = true
	e.EntryTouched = key
	e.Amount = amount
	e.Item = &types.BasicItem{Name: "x"}
	return e
}
