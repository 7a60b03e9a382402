// Package container implements the keyed content container: entries kept
// sorted by EntryKey with binary-searched access, scoped edit handles that
// produce one change record per edit, and a per-batch delta summary for
// replication.
//
// The container is not safe for concurrent use. It is owned by exactly one
// storage, which serializes all access.
package container

import (
	"fmt"
	"iter"
	"sort"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Hooks receive per-item notifications. OnRemoved runs before the entry is
// deleted. Any hook may be nil.
type Hooks struct {
	OnAdded   func(types.KeyedEntry)
	OnChanged func(types.KeyedEntry)
	OnRemoved func(types.KeyedEntry)
	// OnApplied runs once after a Delta has been applied by Apply.
	OnApplied func(Delta)
}

// Container holds entries in ascending EntryKey order.
type Container struct {
	items   []types.KeyedEntry
	version uint64
	batch   batch
	hooks   Hooks
}

// New returns an empty container.
func New(hooks Hooks) *Container {
	return &Container{hooks: hooks, batch: newBatch()}
}

// Len returns the number of entries.
func (c *Container) Len() int {
	return len(c.items)
}

// search returns the position of key, or where it would be inserted.
func (c *Container) search(key types.EntryKey) (int, bool) {
	i := sort.Search(len(c.items), func(i int) bool { return c.items[i].Key >= key })
	return i, i < len(c.items) && c.items[i].Key == key
}

// Contains reports whether key is present.
func (c *Container) Contains(key types.EntryKey) bool {
	_, ok := c.search(key)
	return ok
}

// Get returns a copy of the entry at key.
func (c *Container) Get(key types.EntryKey) (types.Entry, bool) {
	i, ok := c.search(key)
	if !ok {
		return types.Entry{}, false
	}
	return c.items[i].Entry.Clone(), true
}

// View returns the stored entry for reading. The pointer is only valid until
// the next mutation and must not be written through.
func (c *Container) View(key types.EntryKey) (*types.Entry, bool) {
	i, ok := c.search(key)
	if !ok {
		return nil, false
	}
	return &c.items[i].Entry, true
}

// Keys returns all keys in ascending order.
func (c *Container) Keys() []types.EntryKey {
	keys := make([]types.EntryKey, len(c.items))
	for i, it := range c.items {
		keys[i] = it.Key
	}
	return keys
}

// All iterates entries in key order. Yielded entries share memory with the
// container and are read-only.
func (c *Container) All() iter.Seq[types.KeyedEntry] {
	return func(yield func(types.KeyedEntry) bool) {
		for _, it := range c.items {
			if !yield(it) {
				return
			}
		}
	}
}

// Last returns the greatest key.
func (c *Container) Last() (types.EntryKey, bool) {
	if len(c.items) == 0 {
		return types.InvalidKey, false
	}
	return c.items[len(c.items)-1].Key, true
}

// Append adds an entry whose key is greater than every key present. A
// smaller or equal key breaks the sort order and panics.
func (c *Container) Append(key types.EntryKey, entry types.Entry) {
	if last, ok := c.Last(); ok && key <= last {
		panic(fmt.Sprintf("container: Append(%s) after %s breaks key order", key, last))
	}
	c.items = append(c.items, types.KeyedEntry{Key: key, Entry: entry})
	c.version++
	c.batch.markAdded(key)
	c.notify(c.hooks.OnAdded, c.items[len(c.items)-1])
}

// Insert places the entry at its sorted position. An existing entry with the
// same key is overwritten and reported as changed.
func (c *Container) Insert(key types.EntryKey, entry types.Entry) {
	i, found := c.search(key)
	if found {
		c.items[i].Entry = entry
		c.batch.markChanged(key)
		c.notify(c.hooks.OnChanged, c.items[i])
		return
	}
	c.insertAt(i, types.KeyedEntry{Key: key, Entry: entry})
	c.batch.markAdded(key)
	c.notify(c.hooks.OnAdded, c.items[i])
}

func (c *Container) insertAt(i int, it types.KeyedEntry) {
	c.items = append(c.items, types.KeyedEntry{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = it
	c.version++
}

// Remove deletes the entry at key, notifying OnRemoved first.
func (c *Container) Remove(key types.EntryKey) bool {
	i, found := c.search(key)
	if !found {
		return false
	}
	c.notify(c.hooks.OnRemoved, c.items[i])
	c.batch.markRemoved(key)
	c.removeAt(i)
	return true
}

func (c *Container) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.version++
}

// Handle opens a scoped mutable view of the entry at key.
func (c *Container) Handle(key types.EntryKey) (*Handle, bool) {
	i, found := c.search(key)
	if !found {
		return nil, false
	}
	return &Handle{c: c, key: key, index: i, version: c.version}, true
}

// Edit runs fn against the entry at key inside a handle scope.
func (c *Container) Edit(key types.EntryKey, fn func(*types.Entry)) bool {
	h, ok := c.Handle(key)
	if !ok {
		return false
	}
	defer h.Close()
	fn(h.Entry())
	return true
}

func (c *Container) notify(fn func(types.KeyedEntry), it types.KeyedEntry) {
	if fn != nil {
		fn(it)
	}
}

// Handle is a mutable view of one entry. Closing it records exactly one
// change no matter how many fields were edited.
type Handle struct {
	c       *Container
	key     types.EntryKey
	index   int
	version uint64
	closed  bool
}

// Key returns the key of the entry being edited.
func (h *Handle) Key() types.EntryKey {
	return h.key
}

// Entry returns the entry for editing. It panics if the handle was closed or
// the container's membership changed since the handle was opened.
func (h *Handle) Entry() *types.Entry {
	h.check()
	return &h.c.items[h.index].Entry
}

// Close marks the entry changed and fires OnChanged. Later calls do nothing.
// An entry left without stacks panics; remove it through the container.
func (h *Handle) Close() {
	if h.closed {
		return
	}
	h.check()
	h.closed = true
	it := h.c.items[h.index]
	if len(it.Entry.Stacks) == 0 {
		panic(fmt.Sprintf("container: entry %s left without stacks", h.key))
	}
	h.c.batch.markChanged(h.key)
	h.c.notify(h.c.hooks.OnChanged, it)
}

func (h *Handle) check() {
	if h.closed {
		panic(fmt.Sprintf("container: handle for %s used after Close", h.key))
	}
	if h.version != h.c.version {
		panic(fmt.Sprintf("container: handle for %s used after membership changed", h.key))
	}
}
