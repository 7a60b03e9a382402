package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockpile/internal/extension"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

func newStorage(t *testing.T, cfg types.StorageConfig, opts ...Option) *Storage {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

func ore(limit int) *types.BasicItem {
	return &types.BasicItem{Name: "ore", Limit: limit}
}

func counts(e types.Entry) []int {
	out := make([]int, len(e.Stacks))
	for i, s := range e.Stacks {
		out[i] = s.Stack
	}
	return out
}

// spy records the lifecycle callbacks it receives.
type spy struct {
	types.BaseExtension
	calls []string
}

func (s *spy) PreAddition(types.Container, types.StackView) { s.calls = append(s.calls, "pre_add") }
func (s *spy) PostAddition(types.Container, types.Event)    { s.calls = append(s.calls, "post_add") }
func (s *spy) PreRemoval(_ types.Container, _ types.EntryKey, n int) {
	s.calls = append(s.calls, fmt.Sprintf("pre_remove:%d", n))
}
func (s *spy) PostRemoval(types.Container, types.Event) { s.calls = append(s.calls, "post_remove") }
func (s *spy) PostEntryChanged(_ types.Container, e types.Event) {
	s.calls = append(s.calls, "changed:"+string(e.Type))
}

// owned counts possession callbacks.
type owned struct {
	types.BasicItem
	owners map[types.ContainerID]int
}

func (o *owned) Possess(id types.ContainerID) { o.owners[id]++ }
func (o *owned) Release(id types.ContainerID) { o.owners[id]-- }

// bag is an item holding containers of its own.
type bag struct {
	types.BasicItem
	holds types.ContainerID
}

func (b *bag) Holds(id types.ContainerID) bool { return b.holds == id }

func TestAddStackFillsThenOverflows(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})

	ev, err := s.AddStack(ore(10), 25, types.AddToAnyStack)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.Equal(t, types.EntryKey(types.FirstKey), ev.EntryTouched)
	assert.Len(t, ev.StackKeys, 3)

	require.Equal(t, 1, s.EntryCount())
	e, ok := s.GetEntry(ev.EntryTouched)
	require.True(t, ok)
	assert.Equal(t, []int{10, 10, 5}, counts(e))
	assert.Equal(t, 25, e.StackSum())

	ev, err = s.AddStack(ore(10), 7, types.AddToAnyStack)
	require.NoError(t, err)
	e, _ = s.GetEntry(ev.EntryTouched)
	assert.Equal(t, []int{10, 10, 10, 2}, counts(e), "tail stack filled before a new one")
	assert.Equal(t, 1, s.EntryCount())

	_, err = s.AddStack(ore(10), 3, types.OnlyNewStacks)
	require.NoError(t, err)
	e, _ = s.GetEntry(ev.EntryTouched)
	assert.Equal(t, []int{10, 10, 10, 2, 3}, counts(e))
}

func TestAddStackLimits(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.StorageConfig
		item *types.BasicItem
		want []int
	}{
		{"unlimited default", types.StorageConfig{}, &types.BasicItem{Name: "a"}, []int{12}},
		{"config default", types.StorageConfig{DefaultStackLimit: 5}, &types.BasicItem{Name: "a"}, []int{5, 5, 2}},
		{"item wins", types.StorageConfig{DefaultStackLimit: 5}, &types.BasicItem{Name: "a", Limit: 8}, []int{8, 4}},
		{"explicit unlimited", types.StorageConfig{DefaultStackLimit: 5}, &types.BasicItem{Name: "a", Limit: -1}, []int{12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStorage(t, tt.cfg)
			ev, err := s.AddStack(tt.item, 12, types.AddToAnyStack)
			require.NoError(t, err)
			e, _ := s.GetEntry(ev.EntryTouched)
			assert.Equal(t, tt.want, counts(e))
		})
	}
}

func TestAddMutableItems(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	sword := &types.BasicItem{Name: "sword", Limit: 10, IsMutable: true}

	a, err := s.AddStack(sword, 3, types.AddToAnyStack)
	require.NoError(t, err)
	b, err := s.AddStack(&types.BasicItem{Name: "sword", IsMutable: true}, 1, types.AddToAnyStack)
	require.NoError(t, err)

	assert.NotEqual(t, a.EntryTouched, b.EntryTouched, "mutable items never share an entry")
	e, _ := s.GetEntry(a.EntryTouched)
	assert.Equal(t, []int{1, 1, 1}, counts(e))
	assert.Equal(t, 1, e.Limit)
}

func TestAddStackValidation(t *testing.T) {
	s := newStorage(t, types.StorageConfig{}, WithID("home"))
	tests := []struct {
		name    string
		item    types.Item
		count   int
		wantErr error
	}{
		{"nil item", nil, 1, types.ErrInvalidItem},
		{"zero count", ore(5), 0, types.ErrInvalidAmount},
		{"negative count", ore(5), -3, types.ErrInvalidAmount},
		{"holds itself", &bag{BasicItem: types.BasicItem{Name: "bag"}, holds: "home"}, 1, types.ErrRecursiveContainer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := s.AddStack(tt.item, tt.count, types.AddToAnyStack)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ev.Success)
			assert.Equal(t, err.Error(), ev.ErrorMessage)
			assert.ErrorIs(t, s.CanAddStack(tt.item, tt.count, types.AddToAnyStack), tt.wantErr)
			assert.Zero(t, s.EntryCount())
		})
	}

	_, err := s.AddStack(&bag{BasicItem: types.BasicItem{Name: "bag"}, holds: "other"}, 1, types.AddToAnyStack)
	assert.NoError(t, err)
}

func TestUnvotedAdditions(t *testing.T) {
	strict := newStorage(t, types.StorageConfig{DisallowUnvotedAdditions: true})
	_, err := strict.AddStack(ore(5), 1, types.AddToAnyStack)
	assert.ErrorIs(t, err, types.ErrAdditionDisallowed)

	strict.AddExtension(extension.NewContentFilter(extension.ByName("ore")))
	_, err = strict.AddStack(ore(5), 1, types.AddToAnyStack)
	assert.NoError(t, err)
	_, err = strict.AddStack(&types.BasicItem{Name: "gem"}, 1, types.AddToAnyStack)
	assert.ErrorIs(t, err, types.ErrAdditionDisallowed)
}

func TestVetoDominates(t *testing.T) {
	s := newStorage(t, types.StorageConfig{}, WithExtensions(
		extension.NewContentFilter(func(types.StackView) bool { return true }),
		extension.NewGroup(extension.NewItemLimit(0, 4)),
	))
	_, err := s.AddStack(ore(5), 4, types.AddToAnyStack)
	require.NoError(t, err)
	ev, err := s.AddStack(ore(5), 1, types.AddToAnyStack)
	assert.ErrorIs(t, err, types.ErrAdditionDisallowed)
	assert.Contains(t, ev.ErrorMessage, "disallowed")
	assert.Equal(t, 4, s.TotalCopies())
}

func TestCapacityTracksStorage(t *testing.T) {
	capacity := extension.NewCapacity(30, 0)
	s := newStorage(t, types.StorageConfig{}, WithExtensions(capacity))
	brick := &types.BasicItem{Name: "brick", Limit: 5, Capacity: &types.ItemCapacity{Weight: 3, Volume: 2}}

	ev, err := s.AddStack(brick, 8, types.AddToAnyStack)
	require.NoError(t, err)
	assert.Equal(t, 24, capacity.State(s.ID()).Weight)
	assert.Equal(t, 16, capacity.State(s.ID()).Volume)

	_, err = s.AddStack(brick, 3, types.AddToAnyStack)
	assert.ErrorIs(t, err, types.ErrAdditionDisallowed)
	_, err = s.AddStack(&types.BasicItem{Name: "feather"}, 100, types.AddToAnyStack)
	require.NoError(t, err)

	_, err = s.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, 4)
	require.NoError(t, err)
	assert.Equal(t, 12, capacity.State(s.ID()).Weight)
	_, err = s.AddStack(brick, 3, types.AddToAnyStack)
	assert.NoError(t, err)
	assert.Equal(t, 21, capacity.State(s.ID()).Weight)
}

func TestAdditionLifecycleOrder(t *testing.T) {
	sp := &spy{}
	s := newStorage(t, types.StorageConfig{}, WithExtensions(sp))
	ev, err := s.AddStack(ore(5), 12, types.AddToAnyStack)
	require.NoError(t, err)

	_, err = s.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, 4)
	require.NoError(t, err)
	_, err = s.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, types.Unlimited)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pre_add", "post_add",
		"pre_remove:4", "changed:" + string(types.TagRemovalDeletion),
		"pre_remove:8", "post_remove",
	}, sp.calls)
}

func TestRemoveEntry(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	ev, err := s.AddStack(ore(10), 25, types.AddToAnyStack)
	require.NoError(t, err)
	key := ev.EntryTouched

	ev, err = s.RemoveEntry(key, types.TagRemovalDeletion, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, ev.Amount)
	assert.ElementsMatch(t, []types.StackKey{101, 102}, ev.StackKeys)
	e, _ := s.GetEntry(key)
	assert.Equal(t, []int{10, 8}, counts(e), "removal takes from the tail")

	ev, err = s.RemoveEntry(key, types.TagRemovalDeletion, 1000)
	require.NoError(t, err)
	assert.Equal(t, 18, ev.Amount, "amount is capped at what is there")
	assert.False(t, s.IsValidKey(key))
}

func TestRemoveValidation(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	ev, err := s.AddStack(ore(10), 15, types.AddToAnyStack)
	require.NoError(t, err)
	key := ev.EntryTouched
	stack := types.InventoryKey{EntryKey: key, StackKey: ev.StackKeys[0]}

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"zero amount", func() error { _, err := s.RemoveEntry(key, types.TagRemovalDeletion, 0); return err }, types.ErrInvalidAmount},
		{"zero stack amount", func() error { _, err := s.RemoveStack(stack, types.TagRemovalDeletion, 0); return err }, types.ErrInvalidAmount},
		{"below unlimited", func() error { _, err := s.RemoveEntry(key, types.TagRemovalDeletion, -2); return err }, types.ErrInvalidAmount},
		{"invalid key", func() error { _, err := s.RemoveEntry(types.InvalidKey, types.TagRemovalDeletion, 1); return err }, types.ErrInvalidKey},
		{"missing entry", func() error { _, err := s.RemoveEntry(999, types.TagRemovalDeletion, 1); return err }, types.ErrEntryNotFound},
		{"missing stack", func() error {
			_, err := s.RemoveStack(types.InventoryKey{EntryKey: key, StackKey: 999}, types.TagRemovalDeletion, 1)
			return err
		}, types.ErrStackNotFound},
		{"unknown reason", func() error { _, err := s.RemoveEntry(key, "Inventory.Removal.Theft", 1); return err }, types.ErrUnknownReason},
		{"not a removal", func() error { _, err := s.RemoveEntry(key, types.TagAddition, 1); return err }, types.ErrUnknownReason},
		{"ejection not allowed by default", func() error { _, err := s.RemoveEntry(key, types.TagRemovalEjection, 1); return err }, types.ErrRemovalDisallowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.wantErr)
			assert.Equal(t, 15, s.Copies(key))
		})
	}
	assert.ErrorIs(t, s.CanRemoveEntry(key, types.TagRemovalDeletion, 0), types.ErrInvalidAmount)
	assert.NoError(t, s.CanRemoveStack(stack, types.TagRemovalDeletion, 2))
	assert.Equal(t, 15, s.Copies(key))
}

func TestRemoveStack(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	ev, err := s.AddStack(ore(10), 15, types.AddToAnyStack)
	require.NoError(t, err)
	key := ev.EntryTouched
	first := types.InventoryKey{EntryKey: key, StackKey: ev.StackKeys[0]}
	second := types.InventoryKey{EntryKey: key, StackKey: ev.StackKeys[1]}

	_, err = s.RemoveStack(first, types.TagRemovalDeletion, 4)
	require.NoError(t, err)
	e, _ := s.GetEntry(key)
	assert.Equal(t, []int{6, 5}, counts(e))

	_, err = s.RemoveStack(first, types.TagRemovalDeletion, types.Unlimited)
	require.NoError(t, err)
	e, _ = s.GetEntry(key)
	assert.Equal(t, []types.StackKey{second.StackKey}, e.StackKeys())

	ev, err = s.RemoveStack(second, types.TagRemovalDeletion, 5)
	require.NoError(t, err)
	assert.True(t, ev.Success)
	assert.False(t, s.IsValidKey(key), "emptying the last stack removes the entry")
}

func TestTake(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	item := ore(10)
	ev, err := s.AddStack(item, 12, types.AddToAnyStack)
	require.NoError(t, err)

	got, _, err := s.TakeStack(types.InventoryKey{EntryKey: ev.EntryTouched, StackKey: ev.StackKeys[1]}, types.TagRemovalDeletion, types.Unlimited)
	require.NoError(t, err)
	assert.Equal(t, types.ItemStack{Item: item, Copies: 2}, got)

	got, _, err = s.TakeEntry(ev.EntryTouched, types.TagRemovalDeletion, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Copies)
	assert.Equal(t, 7, s.TotalCopies())

	got, _, err = s.TakeEntry(ev.EntryTouched, types.TagRemovalEjection, 1)
	assert.ErrorIs(t, err, types.ErrRemovalDisallowed)
	assert.Zero(t, got.Copies, "nothing is reported taken when nothing was removed")
}

func TestPossession(t *testing.T) {
	s := newStorage(t, types.StorageConfig{}, WithID("s"))
	item := &owned{BasicItem: types.BasicItem{Name: "lamp", Limit: 2}, owners: map[types.ContainerID]int{}}

	ev, err := s.AddStack(item, 5, types.AddToAnyStack)
	require.NoError(t, err)
	assert.Equal(t, 1, item.owners["s"])

	_, err = s.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, item.owners["s"], "partial removal keeps ownership")

	_, err = s.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, types.Unlimited)
	require.NoError(t, err)
	assert.Zero(t, item.owners["s"], "released exactly once")
}

func TestKeyMonotonicity(t *testing.T) {
	s := newStorage(t, types.StorageConfig{DefaultStackLimit: 3})
	rng := rand.New(rand.NewPCG(7, 11))
	highest := types.EntryKey(types.InvalidKey)
	for i := 0; i < 300; i++ {
		if rng.IntN(3) == 0 && s.EntryCount() > 0 {
			keys := s.GetAllKeys()
			_, err := s.RemoveEntry(keys[rng.IntN(len(keys))], types.TagRemovalDeletion, rng.IntN(5)+1)
			require.NoError(t, err)
			continue
		}
		item := &types.BasicItem{Name: fmt.Sprintf("i%d", rng.IntN(20))}
		ev, err := s.AddStack(item, rng.IntN(7)+1, types.AddToAnyStack)
		require.NoError(t, err)
		if ev.EntryTouched > highest {
			highest = ev.EntryTouched
		} else {
			assert.True(t, s.IsValidKey(ev.EntryTouched), "an old key is only reused when the entry still exists")
		}
		for _, key := range s.GetAllKeys() {
			e, _ := s.GetEntry(key)
			require.True(t, e.IsValid(), "entry %s breaks its invariants", key)
		}
	}
}

func TestMoveConservesCopies(t *testing.T) {
	src := newStorage(t, types.StorageConfig{})
	dst := newStorage(t, types.StorageConfig{})
	ev, err := src.AddStack(ore(10), 25, types.AddToAnyStack)
	require.NoError(t, err)
	_, err = dst.AddStack(ore(10), 4, types.AddToAnyStack)
	require.NoError(t, err)

	before := src.TotalCopies() + dst.TotalCopies()
	moved, err := src.MoveStack(dst, types.InventoryKey{EntryKey: ev.EntryTouched, StackKey: ev.StackKeys[0]}, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, moved.Amount)
	assert.Equal(t, types.TagAddition, moved.Type)
	assert.Equal(t, 17, src.TotalCopies())
	assert.Equal(t, 12, dst.TotalCopies())
	assert.Equal(t, before, src.TotalCopies()+dst.TotalCopies())

	_, err = src.MoveEntry(dst, ev.EntryTouched, types.Unlimited)
	require.NoError(t, err)
	assert.Zero(t, src.EntryCount())
	assert.Equal(t, before, dst.TotalCopies())
}

func TestMoveRefusedLeavesBothUnchanged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	src := newStorage(t, types.StorageConfig{}, WithLogger(log))
	dstLog := extension.NewEventLogger(nil)
	dst := newStorage(t, types.StorageConfig{}, WithExtensions(extension.NewItemLimit(0, 5), dstLog))

	ev, err := src.AddStack(ore(10), 8, types.AddToAnyStack)
	require.NoError(t, err)

	fail, err := src.MoveEntry(dst, ev.EntryTouched, types.Unlimited)
	assert.ErrorIs(t, err, types.ErrAdditionDisallowed)
	assert.False(t, fail.Success)
	assert.Equal(t, 8, src.TotalCopies())
	assert.Zero(t, dst.TotalCopies())
	assert.Contains(t, buf.String(), "move refused by destination")
	require.Equal(t, 1, dstLog.Len(), "destination observers see the rejection")

	_, err = src.MoveEntry(src, ev.EntryTouched, 1)
	assert.ErrorIs(t, err, types.ErrSameContainer)
	_, err = src.MoveEntry(nil, ev.EntryTouched, 1)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}

func TestMoveVetoedBySource(t *testing.T) {
	meta := extension.NewMetadata()
	src := newStorage(t, types.StorageConfig{}, WithExtensions(meta))
	dst := newStorage(t, types.StorageConfig{})
	ev, err := src.AddStack(ore(10), 3, types.AddToAnyStack)
	require.NoError(t, err)
	require.True(t, meta.Mark(src, ev.EntryTouched, extension.MetaCannotMove))

	_, err = src.MoveEntry(dst, ev.EntryTouched, types.Unlimited)
	assert.ErrorIs(t, err, types.ErrRemovalDisallowed)
	assert.Equal(t, 3, src.TotalCopies())

	_, err = src.RemoveEntry(ev.EntryTouched, types.TagRemovalDeletion, 1)
	assert.NoError(t, err, "CannotMove does not block deletion")
}

func TestDump(t *testing.T) {
	meta := extension.NewMetadata()
	src := newStorage(t, types.StorageConfig{}, WithExtensions(meta))
	dst := newStorage(t, types.StorageConfig{})
	a, _ := src.AddStack(ore(10), 3, types.AddToAnyStack)
	_, _ = src.AddStack(&types.BasicItem{Name: "gem"}, 2, types.AddToAnyStack)
	meta.Mark(src, a.EntryTouched, extension.MetaCannotMove)

	moved, err := src.Dump(dst)
	assert.Equal(t, 1, moved)
	assert.ErrorIs(t, err, types.ErrRemovalDisallowed)
	assert.Equal(t, []types.EntryKey{a.EntryTouched}, src.GetAllKeys())
	assert.Equal(t, 2, dst.TotalCopies())
}

func TestMergeStacks(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	ev, err := s.AddStack(ore(5), 3, types.AddToAnyStack)
	require.NoError(t, err)
	_, err = s.AddStack(ore(5), 3, types.OnlyNewStacks)
	require.NoError(t, err)
	e, _ := s.GetEntry(ev.EntryTouched)
	a, b := e.Stacks[0].Key, e.Stacks[1].Key

	merged, err := s.MergeStacks(ev.EntryTouched, a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Amount)
	e, _ = s.GetEntry(ev.EntryTouched)
	assert.Equal(t, 1, e.GetStack(a))
	assert.Equal(t, 5, e.GetStack(b))
	assert.Equal(t, 6, e.StackSum())

	merged, err = s.MergeStacks(ev.EntryTouched, a, b)
	require.NoError(t, err)
	assert.Zero(t, merged.Amount, "target already full")

	_, err = s.MergeStacks(ev.EntryTouched, a, a)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
	_, err = s.MergeStacks(ev.EntryTouched, a, 999)
	assert.ErrorIs(t, err, types.ErrStackNotFound)
	_, err = s.MergeStacks(999, a, b)
	assert.ErrorIs(t, err, types.ErrEntryNotFound)
}

func TestMergeDrainsSource(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	ev, _ := s.AddStack(ore(10), 4, types.AddToAnyStack)
	_, _ = s.AddStack(ore(10), 2, types.OnlyNewStacks)
	e, _ := s.GetEntry(ev.EntryTouched)

	_, err := s.MergeStacks(ev.EntryTouched, e.Stacks[1].Key, e.Stacks[0].Key)
	require.NoError(t, err)
	e, _ = s.GetEntry(ev.EntryTouched)
	assert.Equal(t, []int{6}, counts(e))
}

func TestSplitStack(t *testing.T) {
	meta := extension.NewMetadata()
	s := newStorage(t, types.StorageConfig{}, WithExtensions(meta))
	ev, err := s.AddStack(ore(10), 8, types.AddToAnyStack)
	require.NoError(t, err)
	key := types.InventoryKey{EntryKey: ev.EntryTouched, StackKey: ev.StackKeys[0]}

	split, err := s.SplitStack(key, 3)
	require.NoError(t, err)
	require.Len(t, split.StackKeys, 2)
	e, _ := s.GetEntry(key.EntryKey)
	assert.Equal(t, []int{5, 3}, counts(e))
	assert.Equal(t, split.StackKeys[1], e.Stacks[1].Key)

	for _, amount := range []int{0, -1, 5, 6} {
		_, err = s.SplitStack(key, amount)
		assert.ErrorIs(t, err, types.ErrInvalidAmount, "amount %d", amount)
	}

	meta.Mark(s, key.EntryKey, extension.MetaCannotSplit)
	_, err = s.SplitStack(key, 1)
	assert.ErrorIs(t, err, types.ErrEditDisallowed)
	assert.Equal(t, 2, len(counts(mustEntry(t, s, key.EntryKey))))
}

func mustEntry(t *testing.T, s *Storage, key types.EntryKey) types.Entry {
	t.Helper()
	e, ok := s.GetEntry(key)
	require.True(t, ok)
	return e
}

func TestClear(t *testing.T) {
	meta := extension.NewMetadata()
	sp := &spy{}
	s := newStorage(t, types.StorageConfig{}, WithExtensions(meta, sp))
	a, _ := s.AddStack(ore(10), 3, types.AddToAnyStack)
	_, _ = s.AddStack(&types.BasicItem{Name: "gem"}, 2, types.AddToAnyStack)
	meta.Mark(s, a.EntryTouched, extension.MetaCannotRemove)

	_, err := s.Clear("Inventory.Removal.Bogus")
	assert.ErrorIs(t, err, types.ErrUnknownReason)
	assert.Equal(t, 2, s.EntryCount())

	n, err := s.Clear(types.TagRemovalDeletion)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Zero(t, s.EntryCount())
	assert.Empty(t, meta.Tags(s.ID(), a.EntryTouched))
	assert.Contains(t, sp.calls, "post_remove")
}

func TestCustomRemovalReason(t *testing.T) {
	s := newStorage(t, types.StorageConfig{RemovalReasons: []string{"decay"}})
	ev, _ := s.AddStack(ore(10), 3, types.AddToAnyStack)

	_, err := s.RemoveEntry(ev.EntryTouched, "Inventory.Removal.Decay", 1)
	assert.ErrorIs(t, err, types.ErrRemovalDisallowed, "registered but not allowed by default")

	_, err = New(types.StorageConfig{RemovalReasons: []string{"Inventory.Addition.Gift"}})
	assert.ErrorIs(t, err, types.ErrInvalidTag)
}

func TestQuery(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	for i, n := range []int{5, 1, 9, 3} {
		_, err := s.AddStack(&types.BasicItem{Name: fmt.Sprintf("i%d", i)}, n, types.AddToAnyStack)
		require.NoError(t, err)
	}
	big := func(e types.KeyedEntry) bool { return e.Entry.StackSum() >= 5 }
	bySum := func(a, b types.KeyedEntry) bool { return a.Entry.StackSum() < b.Entry.StackSum() }
	sums := func(es []types.KeyedEntry) []int {
		var out []int
		for _, e := range es {
			out = append(out, e.Entry.StackSum())
		}
		return out
	}

	tests := []struct {
		name string
		q    Query
		want []int
	}{
		{"all", Query{}, []int{5, 1, 9, 3}},
		{"filter", Query{Filter: big}, []int{5, 9}},
		{"inverted filter", Query{Filter: big, InvertFilter: true}, []int{1, 3}},
		{"sorted", Query{Less: bySum}, []int{1, 3, 5, 9}},
		{"inverted sort", Query{Less: bySum, InvertSort: true}, []int{9, 5, 3, 1}},
		{"inverted key order", Query{InvertSort: true}, []int{3, 9, 1, 5}},
		{"both", Query{Filter: big, InvertFilter: true, Less: bySum, InvertSort: true}, []int{3, 1}},
		{"nil filter inverted", Query{InvertFilter: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sums(s.QueryAll(tt.q)))
		})
	}

	first, ok := s.QueryFirst(big)
	require.True(t, ok)
	assert.Equal(t, 5, first.Entry.StackSum())
	_, ok = s.QueryFirst(func(e types.KeyedEntry) bool { return e.Entry.StackSum() > 100 })
	assert.False(t, ok)
}

func TestSummaryFoldsBatch(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	a, _ := s.AddStack(ore(10), 3, types.AddToAnyStack)
	b, _ := s.AddStack(&types.BasicItem{Name: "gem"}, 2, types.AddToAnyStack)
	s.Flush()

	_, _ = s.AddStack(ore(10), 1, types.AddToAnyStack)
	_, _ = s.RemoveEntry(b.EntryTouched, types.TagRemovalDeletion, types.Unlimited)
	c, _ := s.AddStack(&types.BasicItem{Name: "wood"}, 1, types.AddToAnyStack)
	_, _ = s.AddStack(&types.BasicItem{Name: "wood"}, 1, types.AddToAnyStack)

	d := s.Summary()
	assert.Equal(t, []types.EntryKey{b.EntryTouched}, d.Removed)
	require.Len(t, d.Added, 1)
	assert.Equal(t, c.EntryTouched, d.Added[0].Key)
	assert.Equal(t, 2, d.Added[0].Entry.StackSum())
	require.Len(t, d.Changed, 1)
	assert.Equal(t, a.EntryTouched, d.Changed[0].Key)

	s.Flush()
	assert.True(t, s.Summary().Empty())
}

func TestSnapshotRestore(t *testing.T) {
	meta := extension.NewMetadata()
	s := newStorage(t, types.StorageConfig{}, WithExtensions(meta))
	a, _ := s.AddStack(ore(10), 25, types.AddToAnyStack)
	b, _ := s.AddStack(&types.BasicItem{Name: "gem"}, 2, types.AddToAnyStack)
	_, _ = s.RemoveEntry(a.EntryTouched, types.TagRemovalDeletion, 6)
	meta.Mark(s, b.EntryTouched, extension.MetaCannotDelete)

	snap, err := s.Snapshot("camp", nil)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Contains(t, snap.Extensions, "metadata")

	_, err = s.Snapshot("../bad", nil)
	assert.ErrorIs(t, err, types.ErrInvalidName)
	assert.ErrorIs(t, s.Restore(snap, nil), types.ErrNotEmpty)

	meta2 := extension.NewMetadata()
	limit := extension.NewItemLimit(0, 100)
	r := newStorage(t, types.StorageConfig{}, WithExtensions(meta2, limit))
	require.NoError(t, r.Restore(snap, types.JSONItemCodec{}))
	assert.Equal(t, s.GetAllKeys(), r.GetAllKeys())
	assert.Equal(t, counts(mustEntry(t, s, a.EntryTouched)), counts(mustEntry(t, r, a.EntryTouched)))
	assert.True(t, meta2.Has(r.ID(), b.EntryTouched, extension.MetaCannotDelete))
	assert.Equal(t, 21, limit.TotalCopies(r.ID()), "extensions see restored entries")

	ev, err := r.AddStack(&types.BasicItem{Name: "wood"}, 1, types.AddToAnyStack)
	require.NoError(t, err)
	assert.Equal(t, b.EntryTouched+1, ev.EntryTouched)
	var maxStack types.StackKey
	for _, es := range snap.Entries {
		for _, st := range es.Stacks {
			maxStack = max(maxStack, st.Key)
		}
	}
	assert.Equal(t, []types.StackKey{maxStack + 1}, ev.StackKeys)

	_, err = r.RemoveEntry(b.EntryTouched, types.TagRemovalDeletion, 1)
	assert.ErrorIs(t, err, types.ErrRemovalDisallowed)
}

func TestRestoreEmptyAndInvalid(t *testing.T) {
	s := newStorage(t, types.StorageConfig{})
	require.NoError(t, s.Restore(types.Snapshot{Name: "empty"}, nil))
	ev, err := s.AddStack(ore(1), 1, types.AddToAnyStack)
	require.NoError(t, err)
	assert.Equal(t, types.EntryKey(types.FirstKey), ev.EntryTouched)

	bad := types.Snapshot{Name: "bad", Entries: []types.EntrySnapshot{
		{Key: 100, Item: []byte(`{"stack_limit":3}`), Limit: 3, Stacks: []types.KeyedStack{{Key: 100, Stack: 1}}},
	}}
	fresh := newStorage(t, types.StorageConfig{})
	assert.ErrorIs(t, fresh.Restore(bad, nil), types.ErrInvalidSnapshot)
	assert.Zero(t, fresh.EntryCount())
}

// sharedCodec decodes every entry to the same item.
type sharedCodec struct{ item types.Item }

func (sharedCodec) EncodeItem(types.Item) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }

func (c sharedCodec) DecodeItem(json.RawMessage) (types.Item, error) { return c.item, nil }

func TestRestoreRollsBackOnBadSaveData(t *testing.T) {
	meta := extension.NewMetadata()
	limit := extension.NewItemLimit(0, 100)
	s := newStorage(t, types.StorageConfig{}, WithExtensions(meta, limit))
	item := &owned{BasicItem: types.BasicItem{Name: "relic"}, owners: make(map[types.ContainerID]int)}
	codec := sharedCodec{item: item}
	snap := types.Snapshot{
		Name: "vault",
		Entries: []types.EntrySnapshot{
			{Key: 100, Item: json.RawMessage(`{}`), Limit: 5, Stacks: []types.KeyedStack{{Key: 100, Stack: 3}}},
		},
		Extensions: map[string]json.RawMessage{"metadata": json.RawMessage(`"not a map"`)},
	}

	err := s.Restore(snap, codec)
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrNotEmpty)
	assert.Zero(t, s.EntryCount())
	assert.Zero(t, limit.TotalCopies(s.ID()))
	assert.Zero(t, item.owners[s.ID()], "restored items are released again")

	snap.Extensions["metadata"] = json.RawMessage(`{"100":["Inventory.Meta.CannotDelete"]}`)
	require.NoError(t, s.Restore(snap, codec))
	assert.Equal(t, 1, s.EntryCount())
	assert.Equal(t, 3, limit.TotalCopies(s.ID()))
	assert.Equal(t, 1, item.owners[s.ID()])
	assert.True(t, meta.Has(s.ID(), 100, extension.MetaCannotDelete))
}
