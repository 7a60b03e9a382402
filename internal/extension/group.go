// Package extension provides the extension group and the built-in
// extensions that vote on and observe container mutations.
package extension

import (
	"reflect"
	"slices"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Group composes extensions behind the Extension interface. Votes are
// aggregated with veto semantics and notifications are broadcast in
// registration order. Groups may nest.
type Group struct {
	extensions []types.Extension
	containers []types.Container
}

// NewGroup returns a group holding exts. Extensions the group refuses, such
// as a second instance of a unique type, are skipped.
func NewGroup(exts ...types.Extension) *Group {
	g := &Group{}
	for _, ext := range exts {
		g.AddExtension(ext)
	}
	return g
}

// Vote runs fn over exts in order. The first Disallowed wins immediately;
// otherwise any Allowed makes the result Allowed.
func Vote(exts []types.Extension, fn func(types.Extension) types.Response) types.Response {
	result := types.NoExplicitResponse
	for _, ext := range exts {
		switch fn(ext) {
		case types.Disallowed:
			return types.Disallowed
		case types.Allowed:
			result = types.Allowed
		}
	}
	return result
}

// Extensions returns the direct members in registration order.
func (g *Group) Extensions() []types.Extension {
	return slices.Clone(g.extensions)
}

// Len returns the number of direct members.
func (g *Group) Len() int {
	return len(g.extensions)
}

// Containers returns the IDs of the containers the group is attached to.
func (g *Group) Containers() []types.ContainerID {
	ids := make([]types.ContainerID, len(g.containers))
	for i, c := range g.containers {
		ids[i] = c.ID()
	}
	return ids
}

func (g *Group) containerIndex(id types.ContainerID) int {
	return slices.IndexFunc(g.containers, func(c types.Container) bool { return c.ID() == id })
}

// AddExtension appends ext and initializes it for every attached container.
// It returns false for nil, for an extension already in the group, for the
// group itself, and for a Unique extension whose type is already present.
func (g *Group) AddExtension(ext types.Extension) bool {
	if ext == nil || g.Contains(ext) {
		return false
	}
	if sub, ok := ext.(*Group); ok && (sub == g || sub.Contains(g)) {
		return false
	}
	if u, ok := ext.(types.Unique); ok && u.Unique() && g.hasType(reflect.TypeOf(ext)) {
		return false
	}
	g.extensions = append(g.extensions, ext)
	for _, c := range g.containers {
		ext.Initialize(c)
	}
	return true
}

// RemoveExtension deinitializes ext for every attached container and
// removes it. It only removes direct members.
func (g *Group) RemoveExtension(ext types.Extension) bool {
	i := slices.Index(g.extensions, ext)
	if i < 0 {
		return false
	}
	for _, c := range g.containers {
		ext.Deinitialize(c)
	}
	g.extensions = slices.Delete(g.extensions, i, i+1)
	return true
}

// Contains reports whether ext is a member of g or of any nested group.
func (g *Group) Contains(ext types.Extension) bool {
	for _, e := range g.extensions {
		if e == ext {
			return true
		}
		if sub, ok := e.(*Group); ok && sub.Contains(ext) {
			return true
		}
	}
	return false
}

func (g *Group) hasType(t reflect.Type) bool {
	found := false
	g.Walk(func(e types.Extension) bool {
		found = reflect.TypeOf(e) == t
		return !found
	})
	return found
}

// Walk visits members depth-first, descending into nested groups after
// visiting them. Returning false stops the walk.
func (g *Group) Walk(fn func(types.Extension) bool) bool {
	for _, e := range g.extensions {
		if !fn(e) {
			return false
		}
		if sub, ok := e.(*Group); ok && !sub.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first extension of type T, searching depth-first through
// nested groups.
func Find[T any](g *Group) (T, bool) {
	var out T
	found := false
	g.Walk(func(e types.Extension) bool {
		if t, ok := e.(T); ok {
			out, found = t, true
			return false
		}
		return true
	})
	return out, found
}

// Has reports whether an extension of type T is present.
func Has[T any](g *Group) bool {
	_, ok := Find[T](g)
	return ok
}

// Initialize attaches the group to c. Attaching an already attached
// container does nothing.
func (g *Group) Initialize(c types.Container) {
	if g.containerIndex(c.ID()) >= 0 {
		return
	}
	g.containers = append(g.containers, c)
	for _, ext := range g.extensions {
		ext.Initialize(c)
	}
}

// Deinitialize detaches the group from c. Unknown containers are ignored.
func (g *Group) Deinitialize(c types.Container) {
	i := g.containerIndex(c.ID())
	if i < 0 {
		return
	}
	for _, ext := range g.extensions {
		ext.Deinitialize(c)
	}
	g.containers = slices.Delete(g.containers, i, i+1)
}

func (g *Group) AllowsAddition(c types.Container, view types.StackView, behavior types.AddBehavior) types.Response {
	return Vote(g.extensions, func(e types.Extension) types.Response {
		return e.AllowsAddition(c, view, behavior)
	})
}

func (g *Group) PreAddition(c types.Container, view types.StackView) {
	for _, e := range g.extensions {
		e.PreAddition(c, view)
	}
}

func (g *Group) PostAddition(c types.Container, event types.Event) {
	for _, e := range g.extensions {
		e.PostAddition(c, event)
	}
}

func (g *Group) AllowsRemoval(c types.Container, key types.EntryKey, reason types.Tag) types.Response {
	return Vote(g.extensions, func(e types.Extension) types.Response {
		return e.AllowsRemoval(c, key, reason)
	})
}

func (g *Group) PreRemoval(c types.Container, key types.EntryKey, amount int) {
	for _, e := range g.extensions {
		e.PreRemoval(c, key, amount)
	}
}

func (g *Group) PostRemoval(c types.Container, event types.Event) {
	for _, e := range g.extensions {
		e.PostRemoval(c, event)
	}
}

func (g *Group) AllowsEdit(c types.Container, key types.InventoryKey, edit types.Tag) types.Response {
	return Vote(g.extensions, func(e types.Extension) types.Response {
		return e.AllowsEdit(c, key, edit)
	})
}

func (g *Group) PostEntryChanged(c types.Container, event types.Event) {
	for _, e := range g.extensions {
		e.PostEntryChanged(c, event)
	}
}

// Rejected forwards to members that observe rejections.
func (g *Group) Rejected(c types.Container, event types.Event) {
	for _, e := range g.extensions {
		if r, ok := e.(types.RejectionObserver); ok {
			r.Rejected(c, event)
		}
	}
}
