package auth

import "time"

// Session is the signed-in identity produced by a successful credential
// exchange. It is read-only to this system; the identity backend owns it.
type Session struct {
	UserID    string
	Email     string
	IDToken   string
	ExpiresAt time.Time
}

// SessionSource exposes the active session to collaborators such as the
// project repository. A nil session means nobody is signed in.
type SessionSource interface {
	Current() *Session
}
