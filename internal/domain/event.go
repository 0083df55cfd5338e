package domain

// EventKind names the stream event vocabulary. A request emits zero or
// more progress events, then zero or more delta events, then exactly one
// terminal event (final, error, or done).
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventDelta    EventKind = "delta"
	EventFinal    EventKind = "final"
	EventError    EventKind = "error"
	EventDone     EventKind = "done"
)

// Event is one entry of the per-request ordered event stream. Text
// carries the payload: a status message for progress, a text fragment
// for delta, the accumulated text for final, a cause for error. Done
// events carry nothing.
type Event struct {
	Kind EventKind
	Text string
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventFinal, EventError, EventDone:
		return true
	default:
		return false
	}
}
