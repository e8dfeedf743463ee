package auth

// State is the login orchestrator's position in one attempt.
type State int

const (
	// StateIdle means no login attempt is in flight.
	StateIdle State = iota

	// StateServerStarting means the loopback callback server is binding.
	StateServerStarting

	// StateAwaitingRedirect means the browser is being handed the provider URL.
	StateAwaitingRedirect

	// StateAwaitingCallback means the attempt blocks on the callback server.
	StateAwaitingCallback

	// StateSucceeded means the attempt produced a session.
	StateSucceeded

	// StateFailed means the attempt resolved with an error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServerStarting:
		return "server_starting"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
