package types

import "encoding/json"

// Response is an extension's vote on a proposed mutation.
type Response uint8

// Vote values.
const (
	// NoExplicitResponse leaves the decision to other extensions or the
	// container's default policy.
	NoExplicitResponse Response = iota
	Allowed
	Disallowed
)

func (r Response) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case Disallowed:
		return "disallowed"
	default:
		return "no_explicit_response"
	}
}

// Resolve turns a vote into a decision, using def when nobody voted.
func (r Response) Resolve(def bool) bool {
	switch r {
	case Allowed:
		return true
	case Disallowed:
		return false
	default:
		return def
	}
}

// AdditionPlan describes where an addition would land without performing
// it. Entry is InvalidKey when a new entry would be created.
type AdditionPlan struct {
	Entry     EntryKey
	NewStacks int
}

// Container is the read-only view of a container handed to extensions.
type Container interface {
	ID() ContainerID
	IsValidKey(key EntryKey) bool
	ForEachKey(fn func(key EntryKey))
	// Copies returns the total count of the entry, or 0 if it does not exist.
	Copies(key EntryKey) int
	// Entry returns a copy of the entry at key.
	Entry(key EntryKey) (Entry, bool)
	PreviewAddition(view StackView, behavior AddBehavior) AdditionPlan
}

// Extension intercepts container mutations. Votes are collected before a
// mutation, and notifications are delivered after it. Extensions must not
// mutate the container they observe from inside any of these calls.
//
// An extension can be attached to several containers at once and must key
// any cached state by Container.ID.
type Extension interface {
	Initialize(c Container)
	Deinitialize(c Container)

	AllowsAddition(c Container, view StackView, behavior AddBehavior) Response
	PreAddition(c Container, view StackView)
	PostAddition(c Container, event Event)

	AllowsRemoval(c Container, key EntryKey, reason Tag) Response
	PreRemoval(c Container, key EntryKey, amount int)
	PostRemoval(c Container, event Event)

	AllowsEdit(c Container, key InventoryKey, edit Tag) Response
	PostEntryChanged(c Container, event Event)
}

// Unique extensions may appear at most once per concrete type in a group.
type Unique interface {
	Unique() bool
}

// Persistent extensions contribute per-container data to snapshots.
type Persistent interface {
	SaveKey() string
	MakeSaveData(c Container) (json.RawMessage, error)
	LoadSaveData(c Container, data json.RawMessage) error
}

// RejectionObserver extensions are told about operations that failed
// validation or were vetoed. The event carries the failure message.
type RejectionObserver interface {
	Rejected(c Container, event Event)
}

// BaseExtension implements every Extension method as a no-op that casts no
// vote. Embed it and override what is needed.
type BaseExtension struct{}

func (BaseExtension) Initialize(Container)   {}
func (BaseExtension) Deinitialize(Container) {}

func (BaseExtension) AllowsAddition(Container, StackView, AddBehavior) Response {
	return NoExplicitResponse
}

func (BaseExtension) PreAddition(Container, StackView) {}
func (BaseExtension) PostAddition(Container, Event)    {}

func (BaseExtension) AllowsRemoval(Container, EntryKey, Tag) Response {
	return NoExplicitResponse
}

func (BaseExtension) PreRemoval(Container, EntryKey, int) {}
func (BaseExtension) PostRemoval(Container, Event)        {}

func (BaseExtension) AllowsEdit(Container, InventoryKey, Tag) Response {
	return NoExplicitResponse
}

func (BaseExtension) PostEntryChanged(Container, Event) {}
