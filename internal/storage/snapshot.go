package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Snapshot captures the entries and the save data of every persistent
// extension under name.
func (s *Storage) Snapshot(name string, codec types.ItemCodec) (types.Snapshot, error) {
	if err := types.ValidateName(name); err != nil {
		return types.Snapshot{}, err
	}
	if codec == nil {
		codec = types.JSONItemCodec{}
	}
	snap := types.Snapshot{
		Name:        name,
		ContainerID: s.id,
		SavedAt:     time.Now().UTC(),
		Entries:     make([]types.EntrySnapshot, 0, s.items.Len()),
	}
	for it := range s.items.All() {
		raw, err := codec.EncodeItem(it.Entry.Item)
		if err != nil {
			return types.Snapshot{}, fmt.Errorf("encode entry %s: %w", it.Key, err)
		}
		snap.Entries = append(snap.Entries, types.EntrySnapshot{
			Key:    it.Key,
			Item:   raw,
			Limit:  it.Entry.Limit,
			Stacks: append([]types.KeyedStack(nil), it.Entry.Stacks...),
		})
	}
	var saveErr error
	s.exts.Walk(func(ext types.Extension) bool {
		p, ok := ext.(types.Persistent)
		if !ok {
			return true
		}
		data, err := p.MakeSaveData(s)
		if err != nil {
			saveErr = fmt.Errorf("save %s: %w", p.SaveKey(), err)
			return false
		}
		if snap.Extensions == nil {
			snap.Extensions = make(map[string]json.RawMessage)
		}
		snap.Extensions[p.SaveKey()] = data
		return true
	})
	if saveErr != nil {
		return types.Snapshot{}, saveErr
	}
	return snap, nil
}

// Restore loads a snapshot into an empty storage. Extensions are detached
// while entries load, attached again, and then handed their save data. The
// next entry key follows the last restored key, or is FirstKey when the
// snapshot is empty; the next stack key follows the largest restored one.
//
// Returns ErrNotEmpty if the storage holds entries and ErrInvalidSnapshot if
// the snapshot fails validation or an item cannot be decoded. When an
// extension rejects its save data the storage is emptied again before the
// error is returned.
func (s *Storage) Restore(snap types.Snapshot, codec types.ItemCodec) error {
	if s.items.Len() > 0 {
		return types.ErrNotEmpty
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	if codec == nil {
		codec = types.JSONItemCodec{}
	}
	entries := make([]types.KeyedEntry, 0, len(snap.Entries))
	maxStack := types.StackKey(types.InvalidKey)
	for _, es := range snap.Entries {
		item, err := codec.DecodeItem(es.Item)
		if err != nil {
			return fmt.Errorf("%w: entry %s: %w", types.ErrInvalidSnapshot, es.Key, err)
		}
		for _, st := range es.Stacks {
			maxStack = max(maxStack, st.Key)
		}
		entries = append(entries, types.KeyedEntry{
			Key:   es.Key,
			Entry: types.Entry{Item: item, Limit: es.Limit, Stacks: append([]types.KeyedStack(nil), es.Stacks...)},
		})
	}

	s.exts.Deinitialize(s)
	s.entryKeys.Reset()
	s.stackKeys.Reset()
	for _, it := range entries {
		s.items.Append(it.Key, it.Entry)
		possess(it.Entry.Item, s.id)
	}
	if last, ok := s.items.Last(); ok {
		s.entryKeys.SetPosition(last)
	}
	if maxStack.IsValid() {
		s.stackKeys.SetPosition(maxStack)
	}
	s.exts.Initialize(s)

	var loadErr error
	s.exts.Walk(func(ext types.Extension) bool {
		p, ok := ext.(types.Persistent)
		if !ok {
			return true
		}
		data, ok := snap.Extensions[p.SaveKey()]
		if !ok {
			return true
		}
		if err := p.LoadSaveData(s, data); err != nil {
			loadErr = fmt.Errorf("load %s: %w", p.SaveKey(), err)
			return false
		}
		return true
	})
	if loadErr != nil {
		s.rollbackRestore(entries)
		s.log.Warn("snapshot restore rolled back",
			"container", string(s.id),
			"snapshot", snap.Name,
			"error", loadErr)
		return loadErr
	}
	s.log.Info("snapshot restored",
		"container", string(s.id),
		"snapshot", snap.Name,
		"entries", len(entries))
	return nil
}

// rollbackRestore empties the storage after a failed restore so that
// Restore can be retried. Extensions see the empty storage again.
func (s *Storage) rollbackRestore(entries []types.KeyedEntry) {
	s.exts.Deinitialize(s)
	for _, it := range entries {
		s.items.Remove(it.Key)
		release(it.Entry.Item, s.id)
	}
	s.entryKeys.Reset()
	s.stackKeys.Reset()
	s.exts.Initialize(s)
}
