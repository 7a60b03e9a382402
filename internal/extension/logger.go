package extension

import (
	"context"
	"io"
	"log/slog"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// LoggedEvent is one event recorded by EventLogger.
type LoggedEvent struct {
	Container types.ContainerID
	Event     types.Event
}

// EventLogger records every post notification and rejection in arrival
// order and mirrors each one to a slog logger.
type EventLogger struct {
	types.BaseExtension

	log    *slog.Logger
	events []LoggedEvent
}

// NewEventLogger returns an EventLogger writing to log. A nil log discards.
func NewEventLogger(log *slog.Logger) *EventLogger {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EventLogger{log: log}
}

func (l *EventLogger) PostAddition(c types.Container, event types.Event) {
	l.record(c, event)
}

func (l *EventLogger) PostRemoval(c types.Container, event types.Event) {
	l.record(c, event)
}

func (l *EventLogger) PostEntryChanged(c types.Container, event types.Event) {
	l.record(c, event)
}

// Rejected implements types.RejectionObserver.
func (l *EventLogger) Rejected(c types.Container, event types.Event) {
	l.record(c, event)
}

func (l *EventLogger) record(c types.Container, event types.Event) {
	l.events = append(l.events, LoggedEvent{Container: c.ID(), Event: event})
	level := slog.LevelDebug
	if !event.Success {
		level = slog.LevelWarn
	}
	if l.log == nil {
		return
	}
	l.log.Log(context.Background(), level, "container event",
		"container", string(c.ID()),
		"type", string(event.Type),
		"success", event.Success,
		"entry", int64(event.EntryTouched),
		"amount", event.Amount,
		"error", event.ErrorMessage,
	)
}

// Len returns the number of recorded events.
func (l *EventLogger) Len() int {
	return len(l.events)
}

// Events returns the events recorded for container id, oldest first.
func (l *EventLogger) Events(id types.ContainerID) []types.Event {
	var out []types.Event
	for _, e := range l.events {
		if e.Container == id {
			out = append(out, e.Event)
		}
	}
	return out
}

// Recent returns up to n of the most recent events across all containers,
// oldest first.
func (l *EventLogger) Recent(n int) []LoggedEvent {
	if n <= 0 {
		return nil
	}
	start := max(len(l.events)-n, 0)
	return append([]LoggedEvent(nil), l.events[start:]...)
}
