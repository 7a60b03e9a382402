// Package stockpile is the public entry point to the stockpile engine. It
// exposes constructors for storages, extension groups, the spatial grid, and
// snapshot stores while the implementations stay internal.
//
// Example:
//
//	g := stockpile.NewGrid(8, 4)
//	s, err := stockpile.NewStorage(types.StorageConfig{}, stockpile.WithExtensions(g))
//	if err != nil {
//	    return err
//	}
//	ev, err := s.AddStack(&types.BasicItem{Name: "arrow", Limit: 20}, 45, types.AddToAnyStack)
package stockpile

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/stockpile/internal/badger"
	"github.com/mesh-intelligence/stockpile/internal/extension"
	"github.com/mesh-intelligence/stockpile/internal/grid"
	"github.com/mesh-intelligence/stockpile/internal/sqlite"
	"github.com/mesh-intelligence/stockpile/internal/storage"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Version is the release version of the module.
const Version = "0.1.0"

// Type aliases for the internal implementations.
type (
	Storage       = storage.Storage
	StorageOption = storage.Option
	Query         = storage.Query
	Group         = extension.Group
	Grid          = grid.Grid
	GridOption    = grid.Option
	Placement     = grid.Placement
	StackMerger   = grid.StackMerger
)

// Built-in extensions.
type (
	ItemLimit     = extension.ItemLimit
	ContentFilter = extension.ContentFilter
	Capacity      = extension.Capacity
	CapacityState = extension.CapacityState
	Metadata      = extension.Metadata
	EventLogger   = extension.EventLogger
	Ejection      = extension.Ejection
	Metrics       = extension.Metrics
)

// Meta tags understood by Metadata.
const (
	MetaCannotRemove = extension.MetaCannotRemove
	MetaCannotDelete = extension.MetaCannotDelete
	MetaCannotMove   = extension.MetaCannotMove
	MetaCannotEject  = extension.MetaCannotEject
	MetaCannotSplit  = extension.MetaCannotSplit
)

// Storage options.
var (
	WithLogger     = storage.WithLogger
	WithComparator = storage.WithComparator
	WithTags       = storage.WithTags
	WithID         = storage.WithID
	WithExtensions = storage.WithExtensions
)

// Grid options.
var (
	WithMerge    = grid.WithMerge
	WithObserver = grid.WithObserver
)

// NewStorage creates an empty storage with its extensions initialized.
func NewStorage(cfg types.StorageConfig, opts ...StorageOption) (*Storage, error) {
	return storage.New(cfg, opts...)
}

// NewGroup creates an extension group holding exts.
func NewGroup(exts ...types.Extension) *Group {
	return extension.NewGroup(exts...)
}

// FindExtension returns the first extension of type T in s, searching nested
// groups depth-first.
func FindExtension[T any](s *Storage) (T, bool) {
	return extension.Find[T](s.Extensions())
}

// HasExtension reports whether s holds an extension of type T.
func HasExtension[T any](s *Storage) bool {
	return extension.Has[T](s.Extensions())
}

// NewGrid creates a grid extension sized width by height for every container
// it is attached to.
func NewGrid(width, height int, opts ...GridOption) *Grid {
	return grid.New(width, height, opts...)
}

// NewItemLimit caps entries and total copies. Zero disables a cap.
func NewItemLimit(maxEntries, maxTotalCopies int) *ItemLimit {
	return extension.NewItemLimit(maxEntries, maxTotalCopies)
}

// NewContentFilter allows additions that filter accepts and vetoes the rest.
func NewContentFilter(filter func(types.StackView) bool) *ContentFilter {
	return extension.NewContentFilter(filter)
}

// NewCapacity caps total weight and volume. Zero disables a cap.
func NewCapacity(maxWeight, maxVolume int) *Capacity {
	return extension.NewCapacity(maxWeight, maxVolume)
}

// NewMetadata returns an empty meta tag store.
func NewMetadata() *Metadata {
	return extension.NewMetadata()
}

// NewEventLogger records events and mirrors them to log.
func NewEventLogger(log *slog.Logger) *EventLogger {
	return extension.NewEventLogger(log)
}

// NewEjection returns an extension that queues ejected stacks.
func NewEjection() *Ejection {
	return extension.NewEjection()
}

// NewMetrics registers container metrics on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	return extension.NewMetrics(reg, namespace)
}

// NewStore returns a detached snapshot store for backend. Call Attach with a
// Config to open it.
func NewStore(backend string) (types.SnapshotStore, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewStore(), nil
	case types.BackendBadger:
		return badger.NewStore(), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
}

// Export writes snaps to a JSONL file, compressed when compression is
// CompressionZstd.
func Export(path string, snaps []types.Snapshot, compression string) error {
	return sqlite.WriteSnapshots(path, snaps, compression)
}

// Import reads a file written by Export.
func Import(path string) ([]types.Snapshot, error) {
	return sqlite.ReadSnapshots(path)
}
