package plugin

import "fmt"

// Event identifies a lifecycle event hooks can bind to.
type Event string

const (
	// EventPreInit fires before a plugin's own init logic.
	EventPreInit Event = "pre-init"

	// EventPostInit fires after a plugin's own init logic.
	EventPostInit Event = "post-init"

	// EventPreExecute fires before the plugin body.
	EventPreExecute Event = "pre-execute"

	// EventPostExecute fires after the plugin body.
	EventPostExecute Event = "post-execute"

	// EventError fires when any phase fails. Dispatch is never re-entrant.
	EventError Event = "error"

	// EventCleanup fires during teardown.
	EventCleanup Event = "cleanup"
)

// Events returns all lifecycle events in declaration order.
func Events() []Event {
	return []Event{
		EventPreInit,
		EventPostInit,
		EventPreExecute,
		EventPostExecute,
		EventError,
		EventCleanup,
	}
}

// Valid reports whether e is a member of the fixed event set.
func (e Event) Valid() bool {
	switch e {
	case EventPreInit, EventPostInit, EventPreExecute, EventPostExecute,
		EventError, EventCleanup:
		return true
	}
	return false
}

// ParseEvent converts a string into an Event.
func ParseEvent(s string) (Event, error) {
	e := Event(s)
	if !e.Valid() {
		return "", fmt.Errorf("%w: unknown lifecycle event %q", ErrValidation, s)
	}
	return e, nil
}
