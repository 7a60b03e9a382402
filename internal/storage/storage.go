// Package storage implements the storage façade: the mutation and query API
// over one keyed container, guarded by an extension group that votes on and
// observes every mutation.
//
// Every mutating operation returns a types.Event describing the outcome and
// an error wrapping one of the sentinel errors in pkg/types. A failed
// operation leaves the storage unchanged. A Storage is not safe for
// concurrent use; callers serialize access.
package storage

import (
	"io"
	"log/slog"

	"github.com/mesh-intelligence/stockpile/internal/container"
	"github.com/mesh-intelligence/stockpile/internal/extension"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Storage is a keyed collection of entries with an extension pipeline.
type Storage struct {
	id    types.ContainerID
	cfg   types.StorageConfig
	tags  *types.TagTable
	cmp   types.Comparator
	log   *slog.Logger
	items *container.Container
	exts  *extension.Group

	entryKeys types.KeyGen[types.EntryKey]
	stackKeys types.KeyGen[types.StackKey]
}

// Option configures a Storage at construction.
type Option func(*Storage)

// WithLogger sets the logger. The default discards.
func WithLogger(log *slog.Logger) Option {
	return func(s *Storage) {
		if log != nil {
			s.log = log
		}
	}
}

// WithComparator replaces types.DefaultComparator for entry matching.
func WithComparator(cmp types.Comparator) Option {
	return func(s *Storage) {
		if cmp != nil {
			s.cmp = cmp
		}
	}
}

// WithTags replaces the tag table built from the storage config.
func WithTags(tags *types.TagTable) Option {
	return func(s *Storage) {
		if tags != nil {
			s.tags = tags
		}
	}
}

// WithID fixes the container identity instead of generating one.
func WithID(id types.ContainerID) Option {
	return func(s *Storage) {
		if id != "" {
			s.id = id
		}
	}
}

// WithExtensions registers extensions in order. They are initialized once
// the storage is built.
func WithExtensions(exts ...types.Extension) Option {
	return func(s *Storage) {
		for _, ext := range exts {
			s.exts.AddExtension(ext)
		}
	}
}

// New returns an empty storage. It fails when the configured removal reasons
// do not form a valid tag table.
func New(cfg types.StorageConfig, opts ...Option) (*Storage, error) {
	tags, err := cfg.TagTable()
	if err != nil {
		return nil, err
	}
	s := &Storage{
		id:   types.NewContainerID(),
		cfg:  cfg,
		tags: tags,
		cmp:  types.DefaultComparator,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		exts: extension.NewGroup(),
	}
	s.items = container.New(container.Hooks{})
	for _, opt := range opts {
		opt(s)
	}
	s.exts.Initialize(s)
	return s, nil
}

// ID implements types.Container.
func (s *Storage) ID() types.ContainerID {
	return s.id
}

// Tags returns the storage's tag table.
func (s *Storage) Tags() *types.TagTable {
	return s.tags
}

// IsValidKey implements types.Container.
func (s *Storage) IsValidKey(key types.EntryKey) bool {
	return key.IsValid() && s.items.Contains(key)
}

// ForEachKey implements types.Container. Keys are visited in ascending order.
func (s *Storage) ForEachKey(fn func(types.EntryKey)) {
	for it := range s.items.All() {
		fn(it.Key)
	}
}

// Copies implements types.Container.
func (s *Storage) Copies(key types.EntryKey) int {
	e, ok := s.items.View(key)
	if !ok {
		return 0
	}
	return e.StackSum()
}

// Entry implements types.Container.
func (s *Storage) Entry(key types.EntryKey) (types.Entry, bool) {
	return s.items.Get(key)
}

// GetEntry returns a copy of the entry at key.
func (s *Storage) GetEntry(key types.EntryKey) (types.Entry, bool) {
	return s.items.Get(key)
}

// View returns the item and total count of the entry at key.
func (s *Storage) View(key types.EntryKey) (types.StackView, bool) {
	e, ok := s.items.View(key)
	if !ok {
		return types.StackView{}, false
	}
	return e.View(), true
}

// GetAllKeys returns every entry key in ascending order.
func (s *Storage) GetAllKeys() []types.EntryKey {
	return s.items.Keys()
}

// EntryCount returns the number of entries.
func (s *Storage) EntryCount() int {
	return s.items.Len()
}

// StackCount returns the number of stacks across all entries.
func (s *Storage) StackCount() int {
	n := 0
	for it := range s.items.All() {
		n += len(it.Entry.Stacks)
	}
	return n
}

// TotalCopies returns the number of copies across all entries.
func (s *Storage) TotalCopies() int {
	n := 0
	for it := range s.items.All() {
		n += it.Entry.StackSum()
	}
	return n
}

// Summary returns the changes made since the last Flush.
func (s *Storage) Summary() container.Delta {
	return s.items.Summary()
}

// Flush returns the pending changes and starts a new batch.
func (s *Storage) Flush() container.Delta {
	return s.items.Flush()
}

// Extensions returns the storage's extension group.
func (s *Storage) Extensions() *extension.Group {
	return s.exts
}

// AddExtension registers ext and initializes it for this storage.
func (s *Storage) AddExtension(ext types.Extension) bool {
	return s.exts.AddExtension(ext)
}

// RemoveExtension deinitializes and unregisters ext.
func (s *Storage) RemoveExtension(ext types.Extension) bool {
	return s.exts.RemoveExtension(ext)
}

// findEntry returns the key of the entry an item would join, or InvalidKey.
// Mutable items never join an existing entry.
func (s *Storage) findEntry(item types.Item) types.EntryKey {
	if item.Mutable() {
		return types.InvalidKey
	}
	for it := range s.items.All() {
		if it.Entry.Item.Mutable() {
			continue
		}
		if it.Entry.Item == item || s.cmp(it.Entry.Item, item) {
			return it.Key
		}
	}
	return types.InvalidKey
}

// limitFor returns the per-stack limit a new entry for item gets.
func (s *Storage) limitFor(item types.Item) int {
	limit := types.StackLimitOf(item, s.cfg.GetDefaultStackLimit())
	if limit == 0 || limit < types.Unlimited {
		return types.Unlimited
	}
	return limit
}

// PreviewAddition implements types.Container.
func (s *Storage) PreviewAddition(view types.StackView, behavior types.AddBehavior) types.AdditionPlan {
	if view.Item == nil {
		return types.AdditionPlan{Entry: types.InvalidKey}
	}
	if key := s.findEntry(view.Item); key.IsValid() {
		e, _ := s.items.View(key)
		return types.AdditionPlan{Entry: key, NewStacks: e.NewStacksNeeded(view.Copies, behavior)}
	}
	return types.AdditionPlan{
		Entry:     types.InvalidKey,
		NewStacks: types.NewStacksFor(view.Copies, s.limitFor(view.Item)),
	}
}

// reject records a failed operation and notifies rejection observers.
func (s *Storage) reject(event types.Event, err error) (types.Event, error) {
	event = event.Fail(err)
	s.exts.Rejected(s, event)
	s.log.Debug("operation rejected",
		"container", string(s.id),
		"type", string(event.Type),
		"entry", int64(event.EntryTouched),
		"error", err)
	return event, err
}

func possess(item types.Item, owner types.ContainerID) {
	if p, ok := item.(types.Possessable); ok {
		p.Possess(owner)
	}
}

func release(item types.Item, owner types.ContainerID) {
	if p, ok := item.(types.Possessable); ok {
		p.Release(owner)
	}
}
