package types

import "errors"

// Validation errors. The operation was rejected before any state changed.
var (
	ErrInvalidKey         = errors.New("invalid key")
	ErrEntryNotFound      = errors.New("entry not found")
	ErrStackNotFound      = errors.New("stack not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidItem        = errors.New("invalid item")
	ErrUnknownReason      = errors.New("unregistered removal reason")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrRecursiveContainer = errors.New("item holds the container it is added to")
	ErrSameContainer      = errors.New("source and destination are the same container")
	ErrNotEmpty           = errors.New("container is not empty")
)

// Policy errors. An extension or the default policy refused the operation.
var (
	ErrAdditionDisallowed = errors.New("addition disallowed")
	ErrRemovalDisallowed  = errors.New("removal disallowed")
	ErrEditDisallowed     = errors.New("edit disallowed")
)

// Snapshot store errors.
var (
	ErrStoreDetached    = errors.New("snapshot store is detached")
	ErrAlreadyAttached  = errors.New("snapshot store is already attached")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrInvalidName      = errors.New("invalid snapshot name")
)
