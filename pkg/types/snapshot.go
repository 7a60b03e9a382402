package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// EntrySnapshot is the persisted form of one entry.
type EntrySnapshot struct {
	Key    EntryKey        `json:"key"`
	Item   json.RawMessage `json:"item"`
	Limit  int             `json:"limit"`
	Stacks []KeyedStack    `json:"stacks"`
}

// Snapshot is the persisted form of a container and its extension data.
type Snapshot struct {
	Name        string                     `json:"name"`
	ContainerID ContainerID                `json:"container_id"`
	SavedAt     time.Time                  `json:"saved_at"`
	Entries     []EntrySnapshot            `json:"entries"`
	Extensions  map[string]json.RawMessage `json:"extensions,omitempty"`
}

var snapshotNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks that name can be used as a snapshot name.
func ValidateName(name string) error {
	if !snapshotNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Validate checks the structural invariants of a snapshot: a valid name,
// entries in strictly ascending key order, and stacks that are positive,
// sorted, within their limit, and unique across entries.
func (s *Snapshot) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	prev := EntryKey(InvalidKey)
	seen := make(map[StackKey]struct{})
	for _, e := range s.Entries {
		if !e.Key.IsValid() || e.Key <= prev {
			return fmt.Errorf("%w: entry key %s out of order", ErrInvalidSnapshot, e.Key)
		}
		prev = e.Key
		if len(e.Item) == 0 {
			return fmt.Errorf("%w: entry %s has no item", ErrInvalidSnapshot, e.Key)
		}
		if e.Limit != Unlimited && e.Limit < 1 {
			return fmt.Errorf("%w: entry %s has limit %d", ErrInvalidSnapshot, e.Key, e.Limit)
		}
		entry := Entry{Item: placeholderItem{}, Stacks: e.Stacks, Limit: e.Limit}
		if !entry.IsValid() {
			return fmt.Errorf("%w: entry %s has invalid stacks", ErrInvalidSnapshot, e.Key)
		}
		for _, st := range e.Stacks {
			if _, dup := seen[st.Key]; dup {
				return fmt.Errorf("%w: stack %s appears twice", ErrInvalidSnapshot, st.Key)
			}
			seen[st.Key] = struct{}{}
		}
	}
	return nil
}

type placeholderItem struct{}

func (placeholderItem) Mutable() bool { return false }

// SnapshotStore persists snapshots by name.
type SnapshotStore interface {
	// Attach opens the store described by config. Returns ErrAlreadyAttached
	// if called twice.
	Attach(config Config) error

	// Detach releases the store. Idempotent.
	Detach() error

	// Save creates or replaces the snapshot with the same name.
	Save(snapshot Snapshot) error

	// Load returns ErrSnapshotNotFound when no snapshot has that name.
	Load(name string) (Snapshot, error)

	// List returns snapshot names in ascending order.
	List() ([]string, error)

	// Delete returns ErrSnapshotNotFound when no snapshot has that name.
	Delete(name string) error
}
