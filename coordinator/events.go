package coordinator

import "time"

// State is the coordinator's position in its lifecycle.
type State string

const (
	// StateIdle is the pre-Start state.
	StateIdle State = "idle"

	// StateMonitoring is the steady state: watching time-to-expiry on a
	// fixed tick.
	StateMonitoring State = "monitoring"

	// StateRefreshing means this instance holds (or is acquiring) the
	// refresh lock and awaits the backend.
	StateRefreshing State = "refreshing"

	// StateFailed is terminal for the current session; a fresh login and
	// a new coordinator restart the cycle.
	StateFailed State = "failed"
)

// EventKind tags coordinator lifecycle events.
type EventKind string

const (
	// EventRefreshed carries the new access token after a successful
	// refresh performed by this instance.
	EventRefreshed EventKind = "refreshed"

	// EventLoggedOut signals the session ended, whether this instance
	// failed its own refresh or learned of a sibling's failure.
	EventLoggedOut EventKind = "logged_out"
)

// Event is the tagged outcome hosts pattern-match on instead of wiring
// opaque callbacks. Token is set for EventRefreshed, Reason for
// EventLoggedOut.
type Event struct {
	Kind   EventKind
	Token  string
	Reason string
}

// Snapshot is the caller-facing view of the coordinator's state.
// ExpiresAt and TimeLeft are nil when there is no active session.
type Snapshot struct {
	State      State
	Refreshing bool
	ExpiresAt  *time.Time
	TimeLeft   *time.Duration
	Role       string
	LastError  string
}
