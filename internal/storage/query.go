package storage

import (
	"slices"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Query selects and orders entries for QueryAll.
type Query struct {
	// Filter keeps entries it returns true for. A nil Filter keeps all.
	Filter func(types.KeyedEntry) bool
	// Less orders the result. A nil Less keeps key order.
	Less func(a, b types.KeyedEntry) bool
	// InvertFilter keeps exactly the entries Filter rejects.
	InvertFilter bool
	// InvertSort reverses the ordering Less defines.
	InvertSort bool
}

func (q Query) keep(e types.KeyedEntry) bool {
	ok := q.Filter == nil || q.Filter(e)
	return ok != q.InvertFilter
}

// QueryFirst returns the first entry in key order that pred accepts.
func (s *Storage) QueryFirst(pred func(types.KeyedEntry) bool) (types.KeyedEntry, bool) {
	for it := range s.items.All() {
		if pred == nil || pred(it) {
			return types.KeyedEntry{Key: it.Key, Entry: it.Entry.Clone()}, true
		}
	}
	return types.KeyedEntry{}, false
}

// QueryAll returns copies of the entries q selects. Inversion negates the
// filter and comparator results; it does not compute set complements.
func (s *Storage) QueryAll(q Query) []types.KeyedEntry {
	var out []types.KeyedEntry
	for it := range s.items.All() {
		if q.keep(it) {
			out = append(out, types.KeyedEntry{Key: it.Key, Entry: it.Entry.Clone()})
		}
	}
	if q.Less != nil {
		slices.SortStableFunc(out, func(a, b types.KeyedEntry) int {
			var c int
			switch {
			case q.Less(a, b):
				c = -1
			case q.Less(b, a):
				c = 1
			}
			if q.InvertSort {
				c = -c
			}
			return c
		})
	} else if q.InvertSort {
		slices.Reverse(out)
	}
	return out
}
