package storage

import (
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// validateAddition checks an addition without voting.
func (s *Storage) validateAddition(item types.Item, count int) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", types.ErrInvalidItem)
	}
	if count <= 0 {
		return fmt.Errorf("%w: add %d copies", types.ErrInvalidAmount, count)
	}
	if h, ok := item.(types.ContainerHolder); ok && h.Holds(s.id) {
		return types.ErrRecursiveContainer
	}
	return nil
}

// voteAddition runs validation and the extension vote.
func (s *Storage) voteAddition(item types.Item, count int, behavior types.AddBehavior) error {
	if err := s.validateAddition(item, count); err != nil {
		return err
	}
	view := types.StackView{Item: item, Copies: count}
	if !s.exts.AllowsAddition(s, view, behavior).Resolve(!s.cfg.DisallowUnvotedAdditions) {
		return types.ErrAdditionDisallowed
	}
	return nil
}

// CanAddStack reports whether AddStack with the same arguments would
// succeed. Nothing is mutated.
func (s *Storage) CanAddStack(item types.Item, count int, behavior types.AddBehavior) error {
	return s.voteAddition(item, count, behavior)
}

// AddStack adds count copies of item. Immutable items join an existing entry
// holding an equal item; with AddToAnyStack the existing stacks are filled
// first. Mutable items always get a new entry with one copy per stack.
//
// Returns ErrInvalidItem, ErrInvalidAmount, or ErrRecursiveContainer for bad
// input and ErrAdditionDisallowed when the vote fails.
func (s *Storage) AddStack(item types.Item, count int, behavior types.AddBehavior) (types.Event, error) {
	event := types.NewEvent(types.TagAddition)
	event.Item = item
	event.Amount = count
	if err := s.voteAddition(item, count, behavior); err != nil {
		return s.reject(event, err)
	}
	s.exts.PreAddition(s, types.StackView{Item: item, Copies: count})
	event = s.commitAddition(event, item, count, behavior)
	s.exts.PostAddition(s, event)
	return event, nil
}

// commitAddition performs a validated addition. It cannot fail.
func (s *Storage) commitAddition(event types.Event, item types.Item, count int, behavior types.AddBehavior) types.Event {
	key := s.findEntry(item)
	if key.IsValid() {
		var modified, added []types.StackKey
		s.items.Edit(key, func(e *types.Entry) {
			if behavior == types.AddToAnyStack {
				modified, added = e.AddToAnyStack(count, &s.stackKeys)
			} else {
				added = e.AddToNewStacks(count, &s.stackKeys)
			}
		})
		event.StackKeys = append(modified, added...)
	} else {
		key = s.entryKeys.NextKey()
		entry := types.Entry{Item: item, Limit: s.limitFor(item)}
		event.StackKeys = entry.AddToNewStacks(count, &s.stackKeys)
		s.items.Append(key, entry)
		possess(item, s.id)
	}
	event.Success = true
	event.EntryTouched = key
	event.Item = item
	s.log.Debug("stack added",
		"container", string(s.id),
		"entry", int64(key),
		"stacks", len(event.StackKeys),
		"amount", count)
	return event
}
