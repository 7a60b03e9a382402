package types

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is a dotted, hierarchical event identifier such as
// "Inventory.Removal.Deletion".
type Tag string

// Built-in event tags.
const (
	TagRoot            Tag = "Inventory"
	TagAddition        Tag = "Inventory.Addition"
	TagRemoval         Tag = "Inventory.Removal"
	TagRemovalDeletion Tag = "Inventory.Removal.Deletion"
	TagRemovalMoving   Tag = "Inventory.Removal.Moving"
	TagRemovalEjection Tag = "Inventory.Removal.Ejection"
	TagEdit            Tag = "Inventory.Edit"
	TagEditSplit       Tag = "Inventory.Edit.Split"
	TagEditMerge       Tag = "Inventory.Edit.Merge"
)

// Matches reports whether t equals parent or sits below it.
func (t Tag) Matches(parent Tag) bool {
	return t == parent || strings.HasPrefix(string(t), string(parent)+".")
}

// Parent returns the tag one level up, or "" for a root tag.
func (t Tag) Parent() Tag {
	i := strings.LastIndexByte(string(t), '.')
	if i < 0 {
		return ""
	}
	return t[:i]
}

var builtinTags = []Tag{
	TagRoot,
	TagAddition,
	TagRemoval,
	TagRemovalDeletion,
	TagRemovalMoving,
	TagRemovalEjection,
	TagEdit,
	TagEditSplit,
	TagEditMerge,
}

var builtinAllowedRemovals = []Tag{TagRemovalDeletion, TagRemovalMoving}

// TagTable is the immutable set of known event tags plus the removal reasons
// that are allowed when no extension votes. Build one with NewTagTable at
// startup and share it by reference.
type TagTable struct {
	known   map[Tag]struct{}
	allowed map[Tag]struct{}
}

var defaultTags = mustTagTable(nil, nil)

// DefaultTags returns the table of built-in tags, with Deletion and Moving
// allowed by default.
func DefaultTags() *TagTable {
	return defaultTags
}

// NewTagTable builds a table holding the built-in tags plus extra. Every
// extra tag must sit under TagRemoval or TagEdit, and its parent chain is
// registered with it. allowedByDefault replaces the default allowed removal
// set when non-nil; each of its tags must be a registered removal reason.
func NewTagTable(extra, allowedByDefault []Tag) (*TagTable, error) {
	t := &TagTable{
		known:   make(map[Tag]struct{}),
		allowed: make(map[Tag]struct{}),
	}
	for _, tag := range builtinTags {
		t.known[tag] = struct{}{}
	}
	for _, tag := range extra {
		if !tag.Matches(TagRemoval) && !tag.Matches(TagEdit) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
		for p := tag; p != ""; p = p.Parent() {
			t.known[p] = struct{}{}
		}
	}
	if allowedByDefault == nil {
		allowedByDefault = builtinAllowedRemovals
	}
	for _, tag := range allowedByDefault {
		if !t.IsRemoval(tag) {
			return nil, fmt.Errorf("%w: %q is not a removal reason", ErrInvalidTag, tag)
		}
		t.allowed[tag] = struct{}{}
	}
	return t, nil
}

func mustTagTable(extra, allowed []Tag) *TagTable {
	t, err := NewTagTable(extra, allowed)
	if err != nil {
		panic(err)
	}
	return t
}

// Registered reports whether tag is known to the table.
func (t *TagTable) Registered(tag Tag) bool {
	_, ok := t.known[tag]
	return ok
}

// IsRemoval reports whether tag is a registered removal reason.
func (t *TagTable) IsRemoval(tag Tag) bool {
	return t.Registered(tag) && tag.Matches(TagRemoval)
}

// IsEdit reports whether tag is a registered edit type.
func (t *TagTable) IsEdit(tag Tag) bool {
	return t.Registered(tag) && tag.Matches(TagEdit) && tag != TagEdit
}

// AllowedByDefault reports whether a removal for reason proceeds when no
// extension votes on it.
func (t *TagTable) AllowedByDefault(reason Tag) bool {
	_, ok := t.allowed[reason]
	return ok
}

// Tags returns every registered tag in sorted order.
func (t *TagTable) Tags() []Tag {
	out := make([]Tag, 0, len(t.known))
	for tag := range t.known {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveReason maps a short reason name ("deletion", "moving", ...) or a
// full tag to a registered removal tag.
func (t *TagTable) ResolveReason(name string) (Tag, bool) {
	candidates := []Tag{Tag(name), TagRemoval + "." + Tag(capitalize(name))}
	for _, c := range candidates {
		if t.IsRemoval(c) {
			return c, true
		}
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
