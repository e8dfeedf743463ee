// Package identity exchanges a provider bearer token for the user's profile
// and a backend session credential.
package identity

import (
	"context"
	"time"
)

// Profile is the user information returned by the provider's userinfo endpoint.
type Profile struct {
	Subject string
	Email   string
	Name    string
}

// Credential is the backend session obtained by signing the bearer token
// into the identity backend.
type Credential struct {
	UserID    string
	Email     string
	IDToken   string
	ExpiresAt time.Time
}

// Exchanger swaps a provider access token for a profile and a backend
// credential. Either network call failing fails the whole exchange; there
// are no retries.
type Exchanger interface {
	Exchange(ctx context.Context, accessToken string) (*Profile, *Credential, error)
}
