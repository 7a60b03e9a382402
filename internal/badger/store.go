// Package badger implements a snapshot store backed by BadgerDB. Each
// snapshot is one JSON value under the key "snapshot/<name>".
package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// DirName is the directory created under DataDir for the Badger files.
const DirName = "badger"

const keyPrefix = "snapshot/"

// Store implements types.SnapshotStore on top of BadgerDB.
type Store struct {
	mu       sync.RWMutex
	attached bool
	inMemory bool
	config   types.Config
	db       *dgbadger.DB
}

var _ types.SnapshotStore = (*Store)(nil)

// NewStore creates a detached store persisting under DataDir.
func NewStore() *Store {
	return &Store{}
}

// NewInMemoryStore creates a detached store that keeps everything in memory.
// DataDir is ignored.
func NewInMemoryStore() *Store {
	return &Store{inMemory: true}
}

func snapshotKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Attach opens the Badger database. Returns ErrAlreadyAttached if already
// attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	var opts dgbadger.Options
	if s.inMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		dir := filepath.Join(dataDir, DirName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		opts = dgbadger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	s.db = db
	s.config = config
	s.attached = true
	return nil
}

// Detach closes the database. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	s.attached = false
	return nil
}

// Save creates or replaces the snapshot with the same name.
func (s *Store) Save(snap types.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", snap.Name, err)
	}
	return s.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set(snapshotKey(snap.Name), data)
	})
}

// Load returns ErrSnapshotNotFound when no snapshot has that name.
func (s *Store) Load(name string) (types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.Snapshot{}, types.ErrStoreDetached
	}

	var snap types.Snapshot
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(snapshotKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return types.Snapshot{}, fmt.Errorf("%w: %q", types.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

// List returns snapshot names in ascending order. Badger iterates keys in
// byte order, which matches string order for the names ValidateName accepts.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	var names []string
	err := s.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return names, err
}

// Delete returns ErrSnapshotNotFound when no snapshot has that name.
func (s *Store) Delete(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	err := s.db.Update(func(txn *dgbadger.Txn) error {
		if _, err := txn.Get(snapshotKey(name)); err != nil {
			return err
		}
		return txn.Delete(snapshotKey(name))
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %q", types.ErrSnapshotNotFound, name)
	}
	return err
}
