package container

import (
	"slices"
	"sort"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Delta is the minimal record of one batch of mutations. Each key appears
// in at most one list. Removed is sorted descending; Added and Changed are
// sorted ascending and carry copies of the entries as of the summary.
type Delta struct {
	Removed []types.EntryKey
	Added   []types.KeyedEntry
	Changed []types.KeyedEntry
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0 && len(d.Changed) == 0
}

type batch struct {
	added   map[types.EntryKey]struct{}
	changed map[types.EntryKey]struct{}
	removed map[types.EntryKey]struct{}
}

func newBatch() batch {
	return batch{
		added:   make(map[types.EntryKey]struct{}),
		changed: make(map[types.EntryKey]struct{}),
		removed: make(map[types.EntryKey]struct{}),
	}
}

func (b *batch) markAdded(k types.EntryKey) {
	b.added[k] = struct{}{}
}

// markChanged folds edits to an entry added in this batch into the addition.
func (b *batch) markChanged(k types.EntryKey) {
	if _, ok := b.added[k]; ok {
		return
	}
	b.changed[k] = struct{}{}
}

// markRemoved cancels an addition from the same batch; a replica never saw
// that entry.
func (b *batch) markRemoved(k types.EntryKey) {
	if _, ok := b.added[k]; ok {
		delete(b.added, k)
		return
	}
	delete(b.changed, k)
	b.removed[k] = struct{}{}
}

// Summary returns the delta accumulated since the last Flush.
func (c *Container) Summary() Delta {
	var d Delta
	for k := range c.batch.removed {
		d.Removed = append(d.Removed, k)
	}
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] > d.Removed[j] })
	d.Added = c.collect(c.batch.added)
	d.Changed = c.collect(c.batch.changed)
	return d
}

func (c *Container) collect(keys map[types.EntryKey]struct{}) []types.KeyedEntry {
	var out []types.KeyedEntry
	for _, it := range c.items {
		if _, ok := keys[it.Key]; ok {
			out = append(out, types.KeyedEntry{Key: it.Key, Entry: it.Entry.Clone()})
		}
	}
	return out
}

// Flush returns the current summary and starts a new batch.
func (c *Container) Flush() Delta {
	d := c.Summary()
	c.batch = newBatch()
	return d
}

// Apply replays a delta produced by another container. Per-item hooks run
// first, removals before additions before changes; entries named in Removed
// are deleted last in descending order, then OnApplied runs. Applying does
// not record a batch on the receiving side.
func (c *Container) Apply(d Delta) {
	var doomed []int
	for _, k := range d.Removed {
		if i, ok := c.search(k); ok {
			c.notify(c.hooks.OnRemoved, c.items[i])
			doomed = append(doomed, i)
		}
	}
	for _, it := range d.Added {
		it.Entry = it.Entry.Clone()
		i, found := c.search(it.Key)
		if found {
			c.items[i] = it
		} else {
			c.insertAt(i, it)
			for j := range doomed {
				if doomed[j] >= i {
					doomed[j]++
				}
			}
		}
		c.notify(c.hooks.OnAdded, it)
	}
	for _, it := range d.Changed {
		it.Entry = it.Entry.Clone()
		if i, found := c.search(it.Key); found {
			c.items[i] = it
			c.notify(c.hooks.OnChanged, it)
		}
	}
	slices.Sort(doomed)
	for j := len(doomed) - 1; j >= 0; j-- {
		c.removeAt(doomed[j])
	}
	if c.hooks.OnApplied != nil {
		c.hooks.OnApplied(d)
	}
}

// Sorted reports whether keys are strictly ascending.
func (c *Container) Sorted() bool {
	for i := 1; i < len(c.items); i++ {
		if c.items[i-1].Key >= c.items[i].Key {
			return false
		}
	}
	return true
}
