package types

import (
	"time"

	"github.com/google/uuid"
)

// Event records the outcome of one container mutation. Failed operations
// return an Event with Success false and the reason in ErrorMessage.
type Event struct {
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	Type         Tag        `json:"type"`
	Success      bool       `json:"success"`
	EntryTouched EntryKey   `json:"entry"`
	StackKeys    []StackKey `json:"stacks,omitempty"`
	Amount       int        `json:"amount"`
	Item         Item       `json:"-"`
	ErrorMessage string     `json:"error,omitempty"`
}

// NewEvent starts an event of the given type with a fresh ID.
func NewEvent(tag Tag) Event {
	return Event{
		ID:           NewID(),
		Timestamp:    time.Now().UTC(),
		Type:         tag,
		EntryTouched: InvalidKey,
	}
}

// Fail marks the event unsuccessful and records err.
func (e Event) Fail(err error) Event {
	e.Success = false
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// NewID returns a new UUID v7 string, falling back to v4 if v7 generation
// fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NewContainerID returns a fresh container identity.
func NewContainerID() ContainerID {
	return ContainerID(NewID())
}
