package extension

import "github.com/mesh-intelligence/stockpile/pkg/types"

// ItemLimit caps the number of entries and the total number of copies a
// container may hold. A limit of zero or less disables that check.
type ItemLimit struct {
	types.BaseExtension

	MaxEntries     int
	MaxTotalCopies int

	caches map[types.ContainerID]*limitCache
}

type limitCache struct {
	copies map[types.EntryKey]int
	total  int
}

// NewItemLimit returns an ItemLimit with the given caps.
func NewItemLimit(maxEntries, maxTotalCopies int) *ItemLimit {
	return &ItemLimit{
		MaxEntries:     maxEntries,
		MaxTotalCopies: maxTotalCopies,
		caches:         make(map[types.ContainerID]*limitCache),
	}
}

func (l *ItemLimit) Initialize(c types.Container) {
	if l.caches == nil {
		l.caches = make(map[types.ContainerID]*limitCache)
	}
	cache := &limitCache{copies: make(map[types.EntryKey]int)}
	l.caches[c.ID()] = cache
	c.ForEachKey(func(key types.EntryKey) {
		cache.update(c, key)
	})
}

func (l *ItemLimit) Deinitialize(c types.Container) {
	delete(l.caches, c.ID())
}

func (l *ItemLimit) AllowsAddition(c types.Container, view types.StackView, behavior types.AddBehavior) types.Response {
	cache, ok := l.caches[c.ID()]
	if !ok {
		return types.NoExplicitResponse
	}
	if l.MaxEntries > 0 && len(cache.copies) >= l.MaxEntries {
		if plan := c.PreviewAddition(view, behavior); !plan.Entry.IsValid() {
			return types.Disallowed
		}
	}
	if l.MaxTotalCopies > 0 && cache.total+view.Copies > l.MaxTotalCopies {
		return types.Disallowed
	}
	return types.Allowed
}

func (l *ItemLimit) PostAddition(c types.Container, event types.Event) {
	l.refresh(c, event.EntryTouched)
}

func (l *ItemLimit) PostRemoval(c types.Container, event types.Event) {
	l.refresh(c, event.EntryTouched)
}

func (l *ItemLimit) PostEntryChanged(c types.Container, event types.Event) {
	l.refresh(c, event.EntryTouched)
}

func (l *ItemLimit) refresh(c types.Container, key types.EntryKey) {
	if cache, ok := l.caches[c.ID()]; ok {
		cache.update(c, key)
	}
}

func (lc *limitCache) update(c types.Container, key types.EntryKey) {
	prev := lc.copies[key]
	if !c.IsValidKey(key) {
		lc.total -= prev
		delete(lc.copies, key)
		return
	}
	now := c.Copies(key)
	lc.copies[key] = now
	lc.total += now - prev
}

// TotalCopies returns the cached copy count for container id.
func (l *ItemLimit) TotalCopies(id types.ContainerID) int {
	if cache, ok := l.caches[id]; ok {
		return cache.total
	}
	return 0
}

// RemainingEntries returns how many more entries fit, or Unlimited.
func (l *ItemLimit) RemainingEntries(id types.ContainerID) int {
	if l.MaxEntries <= 0 {
		return types.Unlimited
	}
	n := 0
	if cache, ok := l.caches[id]; ok {
		n = len(cache.copies)
	}
	return max(l.MaxEntries-n, 0)
}

// RemainingCopies returns how many more copies fit, or Unlimited.
func (l *ItemLimit) RemainingCopies(id types.ContainerID) int {
	if l.MaxTotalCopies <= 0 {
		return types.Unlimited
	}
	return max(l.MaxTotalCopies-l.TotalCopies(id), 0)
}
