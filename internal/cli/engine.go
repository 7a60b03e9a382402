package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/stockpile/internal/extension"
	"github.com/mesh-intelligence/stockpile/internal/grid"
	"github.com/mesh-intelligence/stockpile/internal/storage"
	"github.com/mesh-intelligence/stockpile/pkg/stockpile"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// engine holds the resolved config, logger, and attached snapshot store for
// one command invocation.
type engine struct {
	cfg   types.Config
	log   *slog.Logger
	store types.SnapshotStore
}

// openEngine resolves config and attaches the configured snapshot store.
// The caller must call close.
func openEngine() (*engine, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, userError("config: %w", err)
	}
	log := newLogger(cfg.Log, os.Stderr)

	store, err := stockpile.NewStore(cfg.Backend)
	if err != nil {
		return nil, userError("%w", err)
	}
	if err := store.Attach(cfg); err != nil {
		return nil, sysError("attach %s store: %w", cfg.Backend, err)
	}
	log.Debug("store attached", "backend", cfg.Backend, "data_dir", cfg.DataDir)
	return &engine{cfg: cfg, log: log, store: store}, nil
}

func (e *engine) close() error {
	if err := e.store.Detach(); err != nil {
		return sysError("detach store: %w", err)
	}
	return nil
}

// pile is a storage with the extensions the CLI attaches to every container.
type pile struct {
	storage  *storage.Storage
	grid     *grid.Grid
	capacity *extension.Capacity
	meta     *extension.Metadata
	events   *extension.EventLogger
	metrics  *extension.Metrics
}

// newPile builds an empty storage. A nil reg skips the metrics extension.
func (e *engine) newPile(id types.ContainerID, reg prometheus.Registerer) (*pile, error) {
	p := &pile{
		meta:   extension.NewMetadata(),
		events: extension.NewEventLogger(e.log),
	}
	exts := []types.Extension{p.meta, p.events}
	if e.cfg.Grid.Enabled() {
		p.grid = grid.New(e.cfg.Grid.Width, e.cfg.Grid.Height, grid.WithMerge(), grid.WithLogger(e.log))
		exts = append(exts, p.grid)
	}
	if e.cfg.Capacity.Enabled() {
		p.capacity = extension.NewCapacity(e.cfg.Capacity.MaxWeight, e.cfg.Capacity.MaxVolume)
		exts = append(exts, p.capacity)
	}
	if reg != nil {
		m, err := extension.NewMetrics(reg, "stockpile")
		if err != nil {
			return nil, err
		}
		p.metrics = m
		exts = append(exts, m)
	}

	opts := []storage.Option{storage.WithLogger(e.log), storage.WithExtensions(exts...)}
	if id != "" {
		opts = append(opts, storage.WithID(id))
	}
	s, err := storage.New(e.cfg.Storage, opts...)
	if err != nil {
		return nil, err
	}
	p.storage = s
	return p, nil
}

// loadPile restores the named snapshot into a new pile. It reports false
// when no snapshot has that name; the pile is then empty with container id.
func (e *engine) loadPile(name string, id types.ContainerID, reg prometheus.Registerer) (*pile, bool, error) {
	snap, err := e.store.Load(name)
	switch {
	case errors.Is(err, types.ErrSnapshotNotFound):
		p, err := e.newPile(id, reg)
		return p, false, err
	case err != nil:
		return nil, false, err
	}
	if id == "" {
		id = snap.ContainerID
	}
	p, err := e.newPile(id, reg)
	if err != nil {
		return nil, false, err
	}
	if err := p.storage.Restore(snap, nil); err != nil {
		return nil, true, err
	}
	return p, true, nil
}
