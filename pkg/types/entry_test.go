package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(limit int, counts ...int) (*Entry, *KeyGen[StackKey]) {
	gen := &KeyGen[StackKey]{}
	e := &Entry{Item: &BasicItem{Name: "ore"}, Limit: limit}
	for _, c := range counts {
		e.Stacks = append(e.Stacks, KeyedStack{Key: gen.NextKey(), Stack: c})
	}
	return e, gen
}

func TestEntryAddToAnyStackOverflowsIntoNewStacks(t *testing.T) {
	e, gen := newEntry(10)

	modified, added := e.AddToAnyStack(25, gen)

	assert.Empty(t, modified)
	assert.Len(t, added, 3)
	assert.Equal(t, []KeyedStack{{100, 10}, {101, 10}, {102, 5}}, e.Stacks)
	assert.Equal(t, 25, e.StackSum())
	assert.True(t, e.IsValid())
}

func TestEntryAddToAnyStackFillsExistingFirst(t *testing.T) {
	e, gen := newEntry(10, 7, 10, 4)

	modified, added := e.AddToAnyStack(12, gen)

	assert.Equal(t, []StackKey{100, 102}, modified)
	assert.Equal(t, []StackKey{103}, added)
	assert.Equal(t, []KeyedStack{{100, 10}, {101, 10}, {102, 10}, {103, 3}}, e.Stacks)
}

func TestEntryAddUnlimitedUsesFirstStack(t *testing.T) {
	e, gen := newEntry(Unlimited, 5, 5)

	modified, added := e.AddToAnyStack(1000, gen)

	assert.Equal(t, []StackKey{100}, modified)
	assert.Empty(t, added)
	assert.Equal(t, 1005, e.GetStack(100))
}

func TestEntryAddToNewStacks(t *testing.T) {
	e, gen := newEntry(4, 1)

	added := e.AddToNewStacks(9, gen)

	assert.Equal(t, []StackKey{101, 102, 103}, added)
	assert.Equal(t, 1, e.GetStack(100), "existing stacks are left alone")
	assert.Equal(t, []int{4, 4, 1}, []int{e.GetStack(101), e.GetStack(102), e.GetStack(103)})
}

func TestEntryNewStacksNeeded(t *testing.T) {
	e, _ := newEntry(10, 7, 10)
	assert.Equal(t, 0, e.NewStacksNeeded(3, AddToAnyStack))
	assert.Equal(t, 1, e.NewStacksNeeded(4, AddToAnyStack))
	assert.Equal(t, 2, e.NewStacksNeeded(15, OnlyNewStacks))
	assert.Equal(t, 1, NewStacksFor(99, Unlimited))
	assert.Equal(t, 0, NewStacksFor(0, 5))
}

func TestEntryRemoveFromAnyStackTakesFromTail(t *testing.T) {
	e, _ := newEntry(10, 10, 10, 5)

	modified, removed := e.RemoveFromAnyStack(8)

	assert.Equal(t, []StackKey{101}, modified)
	assert.Equal(t, []StackKey{102}, removed)
	assert.Equal(t, []KeyedStack{{100, 10}, {101, 7}}, e.Stacks)
}

func TestEntryRemoveFromAnyStackExact(t *testing.T) {
	e, _ := newEntry(10, 3, 4)

	modified, removed := e.RemoveFromAnyStack(4)

	assert.Empty(t, modified)
	assert.Equal(t, []StackKey{101}, removed)
	assert.Equal(t, 3, e.StackSum())
}

func TestEntryMergeStacks(t *testing.T) {
	e, _ := newEntry(5, 3, 3)

	rest := e.MergeStacks(100, 101)

	assert.Equal(t, 1, rest)
	assert.Equal(t, 1, e.GetStack(100))
	assert.Equal(t, 5, e.GetStack(101))
	assert.Equal(t, 6, e.StackSum(), "no copies lost")

	rest = e.MergeStacks(100, 101)
	assert.Equal(t, 1, rest, "target is full")

	e.SetStack(101, 4)
	rest = e.MergeStacks(100, 101)
	assert.Equal(t, 0, rest)
	assert.False(t, e.HasStack(100), "drained stack is removed")
}

func TestEntrySplit(t *testing.T) {
	e, gen := newEntry(10, 8)
	gen.NextKey()

	key := e.Split(100, 3, gen)

	assert.Equal(t, StackKey(102), key)
	assert.Equal(t, 5, e.GetStack(100))
	assert.Equal(t, 3, e.GetStack(102))
}

func TestEntrySetStack(t *testing.T) {
	e, _ := newEntry(10, 1, 2)
	e.SetStack(150, 4)
	e.SetStack(99, 2)
	assert.Equal(t, []StackKey{99, 100, 101, 150}, e.StackKeys())

	e.SetStack(100, 0)
	assert.Equal(t, []StackKey{99, 101, 150}, e.StackKeys())

	e.SetStack(101, 9)
	assert.Equal(t, 9, e.GetStack(101))

	e.SetStack(7, 0)
	assert.Len(t, e.Stacks, 3)
}

func TestEntryIsValid(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{name: "valid", entry: Entry{Item: &BasicItem{}, Limit: 5, Stacks: []KeyedStack{{1, 5}}}, want: true},
		{name: "nil item", entry: Entry{Limit: 5, Stacks: []KeyedStack{{1, 5}}}},
		{name: "no stacks", entry: Entry{Item: &BasicItem{}, Limit: 5}},
		{name: "over limit", entry: Entry{Item: &BasicItem{}, Limit: 5, Stacks: []KeyedStack{{1, 6}}}},
		{name: "zero stack", entry: Entry{Item: &BasicItem{}, Limit: 5, Stacks: []KeyedStack{{1, 0}}}},
		{name: "unsorted", entry: Entry{Item: &BasicItem{}, Limit: Unlimited, Stacks: []KeyedStack{{2, 1}, {1, 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.IsValid())
		})
	}
}

func TestEntryCloneDoesNotShareStacks(t *testing.T) {
	e, _ := newEntry(10, 1)
	c := e.Clone()
	c.Stacks[0].Stack = 9
	assert.Equal(t, 1, e.GetStack(100))
}

func TestEntryMatches(t *testing.T) {
	a, _ := newEntry(10, 4)
	b, _ := newEntry(10, 2, 2)
	b.Item = &BasicItem{Name: "ore"}

	require.True(t, a.Matches(b, MatchAll, nil))

	b.Limit = 20
	assert.False(t, a.Matches(b, MatchAll, nil))
	assert.True(t, a.Matches(b, MatchItemData|MatchStackSum, nil))

	b.Item = &BasicItem{Name: "gem"}
	assert.False(t, a.Matches(b, MatchItemData, nil))
	assert.True(t, a.Matches(b, MatchItemData, func(Item, Item) bool { return true }))
}

func TestStackLimitOf(t *testing.T) {
	assert.Equal(t, 1, StackLimitOf(&BasicItem{IsMutable: true, Limit: 50}, Unlimited))
	assert.Equal(t, 50, StackLimitOf(&BasicItem{Limit: 50}, Unlimited))
	assert.Equal(t, 7, StackLimitOf(&BasicItem{}, 7), "zero defers to the default")
	assert.Equal(t, Unlimited, StackLimitOf(&BasicItem{Limit: -1}, 7))
}

func TestDefaultComparator(t *testing.T) {
	a := &BasicItem{Name: "ore"}
	assert.True(t, DefaultComparator(a, &BasicItem{Name: "ore"}))
	assert.False(t, DefaultComparator(a, &BasicItem{Name: "gem"}))
	assert.False(t, DefaultComparator(&BasicItem{Name: "x", IsMutable: true}, &BasicItem{Name: "x", IsMutable: true}))
	assert.False(t, DefaultComparator(a, nil))
}
