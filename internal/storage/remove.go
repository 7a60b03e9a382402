package storage

import (
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// removal is a validated removal waiting to be committed.
type removal struct {
	key    types.InventoryKey
	whole  bool // remove from the entry as a whole rather than one stack
	reason types.Tag
	amount int
	full   bool // the entry disappears
}

// planRemoval validates a removal and resolves its amount. Unlimited, or an
// amount at or above what is available, takes everything.
func (s *Storage) planRemoval(key types.InventoryKey, whole bool, reason types.Tag, amount int) (removal, error) {
	r := removal{key: key, whole: whole, reason: reason}
	if !key.EntryKey.IsValid() {
		return r, fmt.Errorf("%w: entry %s", types.ErrInvalidKey, key.EntryKey)
	}
	e, ok := s.items.View(key.EntryKey)
	if !ok {
		return r, fmt.Errorf("%w: %s", types.ErrEntryNotFound, key.EntryKey)
	}
	available := e.StackSum()
	if !whole {
		if !key.StackKey.IsValid() {
			return r, fmt.Errorf("%w: stack %s", types.ErrInvalidKey, key.StackKey)
		}
		if !e.HasStack(key.StackKey) {
			return r, fmt.Errorf("%w: %s", types.ErrStackNotFound, key)
		}
		available = e.GetStack(key.StackKey)
	}
	if amount == 0 || amount < types.Unlimited {
		return r, fmt.Errorf("%w: remove %d copies", types.ErrInvalidAmount, amount)
	}
	if !s.tags.IsRemoval(reason) {
		return r, fmt.Errorf("%w: %q", types.ErrUnknownReason, reason)
	}
	r.amount = amount
	if amount == types.Unlimited || amount >= available {
		r.amount = available
	}
	if whole {
		r.full = r.amount == e.StackSum()
	} else {
		r.full = r.amount == available && len(e.Stacks) == 1
	}
	return r, nil
}

// voteRemoval plans a removal and runs the extension vote. Reasons in the
// tag table's default set proceed when nobody votes.
func (s *Storage) voteRemoval(key types.InventoryKey, whole bool, reason types.Tag, amount int) (removal, error) {
	r, err := s.planRemoval(key, whole, reason, amount)
	if err != nil {
		return r, err
	}
	if !s.exts.AllowsRemoval(s, key.EntryKey, reason).Resolve(s.tags.AllowedByDefault(reason)) {
		return r, fmt.Errorf("%w: %s for %s", types.ErrRemovalDisallowed, reason, key.EntryKey)
	}
	return r, nil
}

// commitRemoval performs a voted removal. It cannot fail. A full removal is
// reported through PostRemoval, anything less through PostEntryChanged.
func (s *Storage) commitRemoval(r removal) types.Event {
	event := types.NewEvent(r.reason)
	event.EntryTouched = r.key.EntryKey
	event.Amount = r.amount
	s.exts.PreRemoval(s, r.key.EntryKey, r.amount)

	e, _ := s.items.View(r.key.EntryKey)
	event.Item = e.Item
	if r.full {
		event.StackKeys = e.StackKeys()
		s.items.Remove(r.key.EntryKey)
		release(event.Item, s.id)
		event.Success = true
		s.log.Info("entry removed",
			"container", string(s.id),
			"entry", int64(r.key.EntryKey),
			"reason", string(r.reason),
			"amount", r.amount)
		s.exts.PostRemoval(s, event)
		return event
	}

	s.items.Edit(r.key.EntryKey, func(e *types.Entry) {
		if r.whole {
			modified, removed := e.RemoveFromAnyStack(r.amount)
			event.StackKeys = append(modified, removed...)
			return
		}
		e.SetStack(r.key.StackKey, e.GetStack(r.key.StackKey)-r.amount)
		event.StackKeys = []types.StackKey{r.key.StackKey}
	})
	event.Success = true
	s.log.Debug("copies removed",
		"container", string(s.id),
		"entry", int64(r.key.EntryKey),
		"reason", string(r.reason),
		"amount", r.amount)
	s.exts.PostEntryChanged(s, event)
	return event
}

func (s *Storage) remove(key types.InventoryKey, whole bool, reason types.Tag, amount int) (types.Event, error) {
	r, err := s.voteRemoval(key, whole, reason, amount)
	if err != nil {
		event := types.NewEvent(reason)
		event.EntryTouched = key.EntryKey
		event.Amount = amount
		if !whole {
			event.StackKeys = []types.StackKey{key.StackKey}
		}
		return s.reject(event, err)
	}
	return s.commitRemoval(r), nil
}

// RemoveEntry removes amount copies from the entry at key, taking from the
// last stacks first. Pass types.Unlimited to remove the whole entry.
//
// Returns ErrInvalidKey, ErrEntryNotFound, ErrInvalidAmount, or
// ErrUnknownReason for bad input and ErrRemovalDisallowed when the vote
// fails.
func (s *Storage) RemoveEntry(key types.EntryKey, reason types.Tag, amount int) (types.Event, error) {
	return s.remove(types.InventoryKey{EntryKey: key, StackKey: types.InvalidKey}, true, reason, amount)
}

// RemoveStack removes amount copies from one stack. Emptying the last stack
// removes the entry.
func (s *Storage) RemoveStack(key types.InventoryKey, reason types.Tag, amount int) (types.Event, error) {
	return s.remove(key, false, reason, amount)
}

// TakeEntry removes like RemoveEntry and returns what was removed.
func (s *Storage) TakeEntry(key types.EntryKey, reason types.Tag, amount int) (types.ItemStack, types.Event, error) {
	event, err := s.RemoveEntry(key, reason, amount)
	if err != nil {
		return types.ItemStack{}, event, err
	}
	return types.ItemStack{Item: event.Item, Copies: event.Amount}, event, nil
}

// TakeStack removes like RemoveStack and returns what was removed.
func (s *Storage) TakeStack(key types.InventoryKey, reason types.Tag, amount int) (types.ItemStack, types.Event, error) {
	event, err := s.RemoveStack(key, reason, amount)
	if err != nil {
		return types.ItemStack{}, event, err
	}
	return types.ItemStack{Item: event.Item, Copies: event.Amount}, event, nil
}

// CanRemoveEntry reports whether RemoveEntry would succeed.
func (s *Storage) CanRemoveEntry(key types.EntryKey, reason types.Tag, amount int) error {
	_, err := s.voteRemoval(types.InventoryKey{EntryKey: key, StackKey: types.InvalidKey}, true, reason, amount)
	return err
}

// CanRemoveStack reports whether RemoveStack would succeed.
func (s *Storage) CanRemoveStack(key types.InventoryKey, reason types.Tag, amount int) error {
	_, err := s.voteRemoval(key, false, reason, amount)
	return err
}

// Clear removes every entry with reason, bypassing the vote. Extensions
// still see the pre and post removal notifications. It returns the number of
// copies removed, or ErrUnknownReason.
func (s *Storage) Clear(reason types.Tag) (int, error) {
	if !s.tags.IsRemoval(reason) {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownReason, reason)
	}
	removed := 0
	for _, key := range s.items.Keys() {
		r, err := s.planRemoval(types.InventoryKey{EntryKey: key, StackKey: types.InvalidKey}, true, reason, types.Unlimited)
		if err != nil {
			return removed, err
		}
		removed += s.commitRemoval(r).Amount
	}
	return removed, nil
}
