package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

var snapshotTables = []string{"entries", "stacks", "extension_data", "snapshots"}

// Save creates or replaces the snapshot with the same name. All rows are
// written in one transaction.
func (s *Store) Save(snap types.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteRows(tx, snap.Name); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO snapshots (name, snapshot_id, container_id, saved_at) VALUES (?, ?, ?, ?)`,
		snap.Name, generateUUID(), string(snap.ContainerID), snap.SavedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	for _, e := range snap.Entries {
		if _, err := tx.Exec(
			`INSERT INTO entries (snapshot, entry_key, item, stack_limit) VALUES (?, ?, ?, ?)`,
			snap.Name, int64(e.Key), string(e.Item), e.Limit,
		); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.Key, err)
		}
		for pos, st := range e.Stacks {
			if _, err := tx.Exec(
				`INSERT INTO stacks (snapshot, entry_key, stack_key, position, count) VALUES (?, ?, ?, ?, ?)`,
				snap.Name, int64(e.Key), int64(st.Key), pos, st.Stack,
			); err != nil {
				return fmt.Errorf("inserting stack %s: %w", st.Key, err)
			}
		}
	}

	for key, data := range snap.Extensions {
		if _, err := tx.Exec(
			`INSERT INTO extension_data (snapshot, save_key, data) VALUES (?, ?, ?)`,
			snap.Name, key, string(data),
		); err != nil {
			return fmt.Errorf("inserting extension data %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Load reads the named snapshot. Returns ErrSnapshotNotFound when no
// snapshot has that name.
func (s *Store) Load(name string) (types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.Snapshot{}, types.ErrStoreDetached
	}

	snap := types.Snapshot{Name: name}
	var containerID, savedAt string
	err := s.db.QueryRow(
		`SELECT container_id, saved_at FROM snapshots WHERE name = ?`, name,
	).Scan(&containerID, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Snapshot{}, fmt.Errorf("%w: %q", types.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return types.Snapshot{}, err
	}
	snap.ContainerID = types.ContainerID(containerID)
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		snap.SavedAt = t
	}

	entries, err := s.loadEntries(name)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap.Entries = entries

	exts, err := s.loadExtensionData(name)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap.Extensions = exts
	return snap, nil
}

func (s *Store) loadEntries(name string) ([]types.EntrySnapshot, error) {
	rows, err := s.db.Query(
		`SELECT entry_key, item, stack_limit FROM entries WHERE snapshot = ? ORDER BY entry_key`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.EntrySnapshot
	index := make(map[types.EntryKey]int)
	for rows.Next() {
		var (
			key   int64
			item  string
			limit int
		)
		if err := rows.Scan(&key, &item, &limit); err != nil {
			return nil, err
		}
		index[types.EntryKey(key)] = len(entries)
		entries = append(entries, types.EntrySnapshot{
			Key:   types.EntryKey(key),
			Item:  json.RawMessage(item),
			Limit: limit,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stacks, err := s.db.Query(
		`SELECT entry_key, stack_key, count FROM stacks WHERE snapshot = ? ORDER BY entry_key, position`, name)
	if err != nil {
		return nil, err
	}
	defer stacks.Close()
	for stacks.Next() {
		var entryKey, stackKey int64
		var count int
		if err := stacks.Scan(&entryKey, &stackKey, &count); err != nil {
			return nil, err
		}
		i, ok := index[types.EntryKey(entryKey)]
		if !ok {
			return nil, fmt.Errorf("%w: stack %d has no entry %d", types.ErrInvalidSnapshot, stackKey, entryKey)
		}
		entries[i].Stacks = append(entries[i].Stacks, types.KeyedStack{Key: types.StackKey(stackKey), Stack: count})
	}
	return entries, stacks.Err()
}

func (s *Store) loadExtensionData(name string) (map[string]json.RawMessage, error) {
	rows, err := s.db.Query(`SELECT save_key, data FROM extension_data WHERE snapshot = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out map[string]json.RawMessage
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[key] = json.RawMessage(data)
	}
	return out, rows.Err()
}

// List returns snapshot names in ascending order.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := s.db.Query(`SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the named snapshot. Returns ErrSnapshotNotFound when no
// snapshot has that name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %q", types.ErrSnapshotNotFound, name)
	}
	if err := deleteRows(tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteRows(tx *sql.Tx, name string) error {
	for _, table := range snapshotTables {
		col := "snapshot"
		if table == "snapshots" {
			col = "name"
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, col), name); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return nil
}
