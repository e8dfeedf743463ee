package server

// Route path constants
// All bridge routes are defined here to ensure consistency and prevent typos
const (
	// Host editor command channel
	RouteMessage = "/api/message"

	// Session inspection
	RouteSession = "/api/session"

	// Liveness
	RouteHealth = "/healthz"
)
