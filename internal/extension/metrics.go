package extension

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// ErrMetricsRegistration is returned when a collector cannot be registered.
var ErrMetricsRegistration = errors.New("metrics registration failed")

// Metrics exports container activity as prometheus collectors.
type Metrics struct {
	types.BaseExtension

	events     *prometheus.CounterVec
	copies     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	stored     *prometheus.GaugeVec
	entries    *prometheus.GaugeVec
}

// NewMetrics creates the collectors under namespace and registers them on
// reg. A nil reg uses prometheus.DefaultRegisterer. Collectors that are
// already registered are reused.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Successful container mutations by event type.",
		}, []string{"container", "type"}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_total",
			Help:      "Copies moved by successful mutations, by event type.",
		}, []string{"container", "type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Operations rejected by validation or by a veto.",
		}, []string{"container", "type"}),
		stored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_copies",
			Help:      "Copies currently held by the container.",
		}, []string{"container"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries currently held by the container.",
		}, []string{"container"}),
	}
	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	targets := []struct {
		c   prometheus.Collector
		set func(prometheus.Collector)
	}{
		{m.events, func(c prometheus.Collector) { m.events = c.(*prometheus.CounterVec) }},
		{m.copies, func(c prometheus.Collector) { m.copies = c.(*prometheus.CounterVec) }},
		{m.rejections, func(c prometheus.Collector) { m.rejections = c.(*prometheus.CounterVec) }},
		{m.stored, func(c prometheus.Collector) { m.stored = c.(*prometheus.GaugeVec) }},
		{m.entries, func(c prometheus.Collector) { m.entries = c.(*prometheus.GaugeVec) }},
	}
	for _, t := range targets {
		err := reg.Register(t.c)
		if err == nil {
			continue
		}
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return fmt.Errorf("%w: %w", ErrMetricsRegistration, err)
		}
		t.set(already.ExistingCollector)
	}
	return nil
}

func (m *Metrics) Initialize(c types.Container) {
	m.refresh(c)
}

func (m *Metrics) Deinitialize(c types.Container) {
	id := string(c.ID())
	m.stored.DeleteLabelValues(id)
	m.entries.DeleteLabelValues(id)
}

func (m *Metrics) PostAddition(c types.Container, event types.Event) {
	m.observe(c, event)
}

func (m *Metrics) PostRemoval(c types.Container, event types.Event) {
	m.observe(c, event)
}

func (m *Metrics) PostEntryChanged(c types.Container, event types.Event) {
	m.observe(c, event)
}

// Rejected implements types.RejectionObserver.
func (m *Metrics) Rejected(c types.Container, event types.Event) {
	m.rejections.WithLabelValues(string(c.ID()), string(event.Type)).Inc()
}

func (m *Metrics) observe(c types.Container, event types.Event) {
	labels := []string{string(c.ID()), string(event.Type)}
	m.events.WithLabelValues(labels...).Inc()
	if event.Amount > 0 {
		m.copies.WithLabelValues(labels...).Add(float64(event.Amount))
	}
	m.refresh(c)
}

func (m *Metrics) refresh(c types.Container) {
	copies, entries := 0, 0
	c.ForEachKey(func(key types.EntryKey) {
		entries++
		copies += c.Copies(key)
	})
	id := string(c.ID())
	m.stored.WithLabelValues(id).Set(float64(copies))
	m.entries.WithLabelValues(id).Set(float64(entries))
}
