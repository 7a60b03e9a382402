package extension

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Meta tags understood by the Metadata extension.
const (
	MetaCannotRemove types.Tag = "Inventory.Meta.CannotRemove"
	MetaCannotDelete types.Tag = "Inventory.Meta.CannotDelete"
	MetaCannotMove   types.Tag = "Inventory.Meta.CannotMove"
	MetaCannotEject  types.Tag = "Inventory.Meta.CannotEject"
	MetaCannotSplit  types.Tag = "Inventory.Meta.CannotSplit"
)

var metaTags = map[types.Tag]bool{
	MetaCannotRemove: true,
	MetaCannotDelete: true,
	MetaCannotMove:   true,
	MetaCannotEject:  true,
	MetaCannotSplit:  true,
}

// denials maps a removal reason to the meta tag that forbids it.
var denials = map[types.Tag]types.Tag{
	types.TagRemovalDeletion: MetaCannotDelete,
	types.TagRemovalMoving:   MetaCannotMove,
	types.TagRemovalEjection: MetaCannotEject,
}

// ResolveMetaTag maps a short name like "cannot_remove" or a full tag to a
// known meta tag.
func ResolveMetaTag(name string) (types.Tag, bool) {
	if metaTags[types.Tag(name)] {
		return types.Tag(name), true
	}
	short := map[string]types.Tag{
		"cannot_remove": MetaCannotRemove,
		"cannot_delete": MetaCannotDelete,
		"cannot_move":   MetaCannotMove,
		"cannot_eject":  MetaCannotEject,
		"cannot_split":  MetaCannotSplit,
	}
	tag, ok := short[name]
	return tag, ok
}

// Metadata attaches meta tags to entries and vetoes removals and edits the
// tags forbid. Entries without tags get no vote.
type Metadata struct {
	types.BaseExtension

	tags map[types.ContainerID]map[types.EntryKey]map[types.Tag]struct{}
}

// NewMetadata returns an empty Metadata extension.
func NewMetadata() *Metadata {
	return &Metadata{tags: make(map[types.ContainerID]map[types.EntryKey]map[types.Tag]struct{})}
}

// Unique implements types.Unique.
func (m *Metadata) Unique() bool { return true }

func (m *Metadata) Initialize(c types.Container) {
	if m.tags == nil {
		m.tags = make(map[types.ContainerID]map[types.EntryKey]map[types.Tag]struct{})
	}
	if _, ok := m.tags[c.ID()]; !ok {
		m.tags[c.ID()] = make(map[types.EntryKey]map[types.Tag]struct{})
	}
}

func (m *Metadata) Deinitialize(c types.Container) {
	delete(m.tags, c.ID())
}

// Mark adds tag to the entry at key. It fails for unknown tags, unknown
// entries, and tags the entry already has.
func (m *Metadata) Mark(c types.Container, key types.EntryKey, tag types.Tag) bool {
	entries, ok := m.tags[c.ID()]
	if !ok || !metaTags[tag] || !c.IsValidKey(key) || m.Has(c.ID(), key, tag) {
		return false
	}
	set, ok := entries[key]
	if !ok {
		set = make(map[types.Tag]struct{})
		entries[key] = set
	}
	set[tag] = struct{}{}
	return true
}

// Clear removes tag from the entry at key.
func (m *Metadata) Clear(c types.Container, key types.EntryKey, tag types.Tag) bool {
	if !m.Has(c.ID(), key, tag) {
		return false
	}
	set := m.tags[c.ID()][key]
	delete(set, tag)
	if len(set) == 0 {
		delete(m.tags[c.ID()], key)
	}
	return true
}

// Has reports whether the entry carries tag.
func (m *Metadata) Has(id types.ContainerID, key types.EntryKey, tag types.Tag) bool {
	_, ok := m.tags[id][key][tag]
	return ok
}

// Tags returns the entry's tags in sorted order.
func (m *Metadata) Tags(id types.ContainerID, key types.EntryKey) []types.Tag {
	var out []types.Tag
	for tag := range m.tags[id][key] {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

func (m *Metadata) AllowsRemoval(c types.Container, key types.EntryKey, reason types.Tag) types.Response {
	if m.Has(c.ID(), key, MetaCannotRemove) {
		return types.Disallowed
	}
	if deny, ok := denials[reason]; ok && m.Has(c.ID(), key, deny) {
		return types.Disallowed
	}
	return types.NoExplicitResponse
}

func (m *Metadata) AllowsEdit(c types.Container, key types.InventoryKey, edit types.Tag) types.Response {
	if edit == types.TagEditSplit && m.Has(c.ID(), key.EntryKey, MetaCannotSplit) {
		return types.Disallowed
	}
	return types.NoExplicitResponse
}

func (m *Metadata) PostRemoval(c types.Container, event types.Event) {
	if !c.IsValidKey(event.EntryTouched) {
		delete(m.tags[c.ID()], event.EntryTouched)
	}
}

// SaveKey implements types.Persistent.
func (m *Metadata) SaveKey() string { return "metadata" }

// MakeSaveData implements types.Persistent.
func (m *Metadata) MakeSaveData(c types.Container) (json.RawMessage, error) {
	out := make(map[types.EntryKey][]types.Tag)
	for key := range m.tags[c.ID()] {
		out[key] = m.Tags(c.ID(), key)
	}
	return json.Marshal(out)
}

// LoadSaveData implements types.Persistent. Tags for entries the container
// does not hold are dropped.
func (m *Metadata) LoadSaveData(c types.Container, data json.RawMessage) error {
	var in map[types.EntryKey][]types.Tag
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	m.Initialize(c)
	for key, tags := range in {
		for _, tag := range tags {
			m.Mark(c, key, tag)
		}
	}
	return nil
}
