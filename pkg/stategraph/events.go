package stategraph

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened during a run.
type EventType string

const (
	EventRunStarted    EventType = "run.started"
	EventNodeCompleted EventType = "node.completed"
	EventNodeFailed    EventType = "node.failed"
	EventRunCompleted  EventType = "run.completed"
	EventRunPartial    EventType = "run.partial"
	EventRunFailed     EventType = "run.failed"
)

// Event describes one observable step of a run. Events from the same
// run share a RunID for correlation.
type Event struct {
	ID        string
	Type      EventType
	RunID     string
	Node      string
	Timestamp time.Time
	Err       error
}

// Listener receives run events. Listeners run synchronously on the
// executing goroutine; a slow listener slows the run.
type Listener func(Event)

// emit fans an event out to all registered listeners.
func (c *runConfig) emit(t EventType, runID, node string, err error) {
	if len(c.listeners) == 0 {
		return
	}
	ev := Event{
		ID:        uuid.New().String(),
		Type:      t,
		RunID:     runID,
		Node:      node,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
	for _, l := range c.listeners {
		l(ev)
	}
}
