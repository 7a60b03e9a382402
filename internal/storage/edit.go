package storage

import (
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// voteEdit runs the edit vote. Edits proceed when nobody votes.
func (s *Storage) voteEdit(key types.InventoryKey, edit types.Tag) error {
	if !s.exts.AllowsEdit(s, key, edit).Resolve(true) {
		return fmt.Errorf("%w: %s on %s", types.ErrEditDisallowed, edit, key)
	}
	return nil
}

// MergeStacks moves as many copies as fit from stack from into stack to of
// the same entry. A drained source stack is removed. The event amount is the
// number of copies moved, which is zero when to is already full.
func (s *Storage) MergeStacks(entry types.EntryKey, from, to types.StackKey) (types.Event, error) {
	event := types.NewEvent(types.TagEditMerge)
	event.EntryTouched = entry
	event.StackKeys = []types.StackKey{from, to}
	e, ok := s.items.View(entry)
	switch {
	case !entry.IsValid() || !from.IsValid() || !to.IsValid():
		return s.reject(event, types.ErrInvalidKey)
	case !ok:
		return s.reject(event, fmt.Errorf("%w: %s", types.ErrEntryNotFound, entry))
	case from == to:
		return s.reject(event, fmt.Errorf("%w: merge %s into itself", types.ErrInvalidKey, from))
	case !e.HasStack(from) || !e.HasStack(to):
		return s.reject(event, fmt.Errorf("%w: merge %s into %s", types.ErrStackNotFound, from, to))
	}
	event.Item = e.Item
	if err := s.voteEdit(types.InventoryKey{EntryKey: entry, StackKey: from}, types.TagEditMerge); err != nil {
		return s.reject(event, err)
	}
	s.items.Edit(entry, func(e *types.Entry) {
		before := e.GetStack(from)
		event.Amount = before - e.MergeStacks(from, to)
	})
	event.Success = true
	s.log.Debug("stacks merged",
		"container", string(s.id),
		"entry", int64(entry),
		"from", int64(from),
		"to", int64(to),
		"amount", event.Amount)
	s.exts.PostEntryChanged(s, event)
	return event, nil
}

// SplitStack moves amount copies out of a stack into a new stack of the same
// entry. The amount must be positive and smaller than the stack.
func (s *Storage) SplitStack(key types.InventoryKey, amount int) (types.Event, error) {
	event := types.NewEvent(types.TagEditSplit)
	event.EntryTouched = key.EntryKey
	event.Amount = amount
	event.StackKeys = []types.StackKey{key.StackKey}
	e, ok := s.items.View(key.EntryKey)
	switch {
	case !key.IsValid():
		return s.reject(event, fmt.Errorf("%w: %s", types.ErrInvalidKey, key))
	case !ok:
		return s.reject(event, fmt.Errorf("%w: %s", types.ErrEntryNotFound, key.EntryKey))
	case !e.HasStack(key.StackKey):
		return s.reject(event, fmt.Errorf("%w: %s", types.ErrStackNotFound, key))
	case amount <= 0 || amount >= e.GetStack(key.StackKey):
		return s.reject(event, fmt.Errorf("%w: split %d from a stack of %d",
			types.ErrInvalidAmount, amount, e.GetStack(key.StackKey)))
	}
	event.Item = e.Item
	if err := s.voteEdit(key, types.TagEditSplit); err != nil {
		return s.reject(event, err)
	}
	s.items.Edit(key.EntryKey, func(e *types.Entry) {
		next := e.Split(key.StackKey, amount, &s.stackKeys)
		event.StackKeys = append(event.StackKeys, next)
	})
	event.Success = true
	s.log.Debug("stack split",
		"container", string(s.id),
		"entry", int64(key.EntryKey),
		"stack", int64(key.StackKey),
		"amount", amount)
	s.exts.PostEntryChanged(s, event)
	return event, nil
}
