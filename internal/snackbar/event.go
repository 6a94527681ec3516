package snackbar

import "time"

// State is the display state of a Queue.
type State int

const (
	// StateIdle means nothing is displayed and nothing is pending.
	StateIdle State = iota
	// StateDisplaying means the current request is visible.
	StateDisplaying
	// StateDismissing means the current request is hiding and the grace period is running.
	StateDismissing
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDisplaying:
		return "displaying"
	case StateDismissing:
		return "dismissing"
	default:
		return "unknown"
	}
}

// DismissReason records why a notification left the screen.
type DismissReason int

const (
	// DismissNone is used for events that are not dismissals.
	DismissNone DismissReason = iota
	// DismissExpired means the timeout elapsed.
	DismissExpired
	// DismissClosed means Close was called.
	DismissClosed
	// DismissCleared means CloseAll was called.
	DismissCleared
)

// String returns the string representation of the dismiss reason.
func (r DismissReason) String() string {
	switch r {
	case DismissNone:
		return ""
	case DismissExpired:
		return "expired"
	case DismissClosed:
		return "closed"
	case DismissCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// EventKind identifies a queue lifecycle event.
type EventKind int

const (
	// EventQueued is emitted when a request is appended to the pending queue.
	EventQueued EventKind = iota
	// EventShown is emitted when a request becomes visible.
	EventShown
	// EventDismissing is emitted when the dismissal sequence starts.
	EventDismissing
	// EventDismissed is emitted after the grace period, once the display is cleared.
	EventDismissed
	// EventDropped is emitted for pending requests discarded by CloseAll.
	EventDropped
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	switch k {
	case EventQueued:
		return "queued"
	case EventShown:
		return "shown"
	case EventDismissing:
		return "dismissing"
	case EventDismissed:
		return "dismissed"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event describes a change in the queue.
type Event struct {
	Kind    EventKind
	Request Request
	Reason  DismissReason
	At      time.Time
	// SubmittedAt is when the request entered the queue.
	SubmittedAt time.Time
}

// Listener receives queue events in emission order, one event at a time.
// Listeners run outside the queue lock and may call back into the Queue; the
// events that call produces are delivered after the current one.
type Listener func(Event)
