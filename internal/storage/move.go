package storage

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// MoveStack moves amount copies of one stack into dst. Both sides vote
// before either is mutated, so a move either completes on both storages or
// changes neither. The source sees a Moving removal and dst sees an
// addition; the returned event is dst's addition event.
func (s *Storage) MoveStack(dst *Storage, key types.InventoryKey, amount int) (types.Event, error) {
	return s.move(dst, key, false, amount)
}

// MoveEntry moves amount copies of the entry at key into dst. Pass
// types.Unlimited to move the whole entry.
func (s *Storage) MoveEntry(dst *Storage, key types.EntryKey, amount int) (types.Event, error) {
	return s.move(dst, types.InventoryKey{EntryKey: key, StackKey: types.InvalidKey}, true, amount)
}

func (s *Storage) move(dst *Storage, key types.InventoryKey, whole bool, amount int) (types.Event, error) {
	event := types.NewEvent(types.TagRemovalMoving)
	event.EntryTouched = key.EntryKey
	event.Amount = amount
	switch {
	case dst == nil:
		return s.reject(event, fmt.Errorf("%w: no destination", types.ErrInvalidKey))
	case dst == s || dst.id == s.id:
		return s.reject(event, types.ErrSameContainer)
	}

	r, err := s.voteRemoval(key, whole, types.TagRemovalMoving, amount)
	if err != nil {
		return s.reject(event, err)
	}
	e, _ := s.items.View(key.EntryKey)
	item := e.Item
	if err := dst.voteAddition(item, r.amount, types.AddToAnyStack); err != nil {
		s.log.Warn("move refused by destination",
			"container", string(s.id),
			"destination", string(dst.id),
			"entry", int64(key.EntryKey),
			"amount", r.amount,
			"error", err)
		refused := types.NewEvent(types.TagAddition)
		refused.Item = item
		refused.Amount = r.amount
		dst.reject(refused, err)
		event.Item = item
		return s.reject(event, err)
	}

	s.commitRemoval(r)
	dst.exts.PreAddition(dst, types.StackView{Item: item, Copies: r.amount})
	added := types.NewEvent(types.TagAddition)
	added = dst.commitAddition(added, item, r.amount, types.AddToAnyStack)
	dst.exts.PostAddition(dst, added)
	return added, nil
}

// Dump moves every entry into dst. Entries that cannot move stay behind; the
// errors are joined. It returns the number of entries moved.
func (s *Storage) Dump(dst *Storage) (int, error) {
	var errs []error
	moved := 0
	for _, key := range s.items.Keys() {
		if _, err := s.MoveEntry(dst, key, types.Unlimited); err != nil {
			errs = append(errs, fmt.Errorf("entry %s: %w", key, err))
			continue
		}
		moved++
	}
	return moved, errors.Join(errs...)
}
