package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetAuthEndpoint() string
	GetIssuer() string
	GetScopes() []string
	GetFlowName() string
	GetLoginTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (OAuth) GetAuthEndpoint() string {
	return GetEnv("OAUTH_AUTH_ENDPOINT", "https://accounts.google.com/o/oauth2/v2/auth")
}

// GetIssuer returns the OIDC issuer used for userinfo discovery
func (OAuth) GetIssuer() string {
	return GetEnv("OAUTH_ISSUER", "https://accounts.google.com")
}

func (OAuth) GetScopes() []string {
	scopes := GetEnv("OAUTH_SCOPES",
		"https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/userinfo.profile")
	return strings.Fields(scopes)
}

func (OAuth) GetFlowName() string {
	return "GeneralOAuthFlow"
}

// GetLoginTimeout bounds a single login attempt. An abandoned browser tab
// must not strand the loopback server.
func (OAuth) GetLoginTimeout() time.Duration {
	if d, err := time.ParseDuration(GetEnv("LOGIN_TIMEOUT", "")); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}
