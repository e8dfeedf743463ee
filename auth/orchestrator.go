// Package auth sequences the browser login flow: loopback callback server,
// state-token guard, identity exchange, and session lifecycle.
package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"codestash/auth/callback"
	"codestash/auth/identity"
	"codestash/auth/statetoken"
	"codestash/internal/apperrors"
	"codestash/internal/config"
)

// Orchestrator owns the callback server and state token for the duration of
// one login attempt. Exactly one attempt may be in flight.
type Orchestrator struct {
	cfg       config.OAuthConfig
	exchanger identity.Exchanger
	openURL   func(url string) error
	logger    zerolog.Logger

	mu        sync.Mutex
	state     State
	session   *Session
	listeners []func(*Session)
}

// OrchestratorOption defines a function type to modify the Orchestrator instance.
type OrchestratorOption func(*Orchestrator)

// WithBrowserOpener replaces the external browser handoff (primarily for testing).
func WithBrowserOpener(open func(url string) error) OrchestratorOption {
	return func(o *Orchestrator) {
		o.openURL = open
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator initializes a new Orchestrator with required dependencies.
func NewOrchestrator(cfg config.OAuthConfig, exchanger identity.Exchanger, options ...OrchestratorOption) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("[NewOrchestrator] config is required")
	}
	if exchanger == nil {
		return nil, errors.New("[NewOrchestrator] exchanger is required")
	}

	o := &Orchestrator{
		cfg:       cfg,
		exchanger: exchanger,
		openURL:   OpenBrowser,
		logger:    zerolog.Nop(),
		state:     StateIdle,
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

var _ SessionSource = (*Orchestrator)(nil)

// Current returns a copy of the active session, or nil when signed out.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	session := *o.session
	return &session
}

// State reports the orchestrator's current position in the login machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnSessionChange registers a listener invoked after login (with the new
// session) and logout (with nil), so UI collaborators can refresh.
func (o *Orchestrator) OnSessionChange(fn func(*Session)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Login runs one full attempt: start server, build URL, hand off to the
// browser, wait for the callback, sign in, tear the server down. The attempt
// is bounded by the configured login timeout so an abandoned browser tab
// cannot strand the listener.
func (o *Orchestrator) Login(ctx context.Context) (*Session, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	token, err := statetoken.Generate()
	if err != nil {
		return nil, o.fail(errors.Wrap(err, "[Login] state token"))
	}

	var signedIn *Session
	exchange := func(ctx context.Context, accessToken string) error {
		profile, credential, err := o.exchanger.Exchange(ctx, accessToken)
		if err != nil {
			return err
		}
		signedIn = &Session{
			UserID:    credential.UserID,
			Email:     credential.Email,
			IDToken:   credential.IDToken,
			ExpiresAt: credential.ExpiresAt,
		}
		if signedIn.Email == "" {
			signedIn.Email = profile.Email
		}
		return nil
	}

	server := callback.New(token, exchange, callback.WithLogger(o.logger))
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.GetLoginTimeout())
	defer cancel()

	port, err := server.Start(attemptCtx)
	if err != nil {
		return nil, o.fail(err)
	}
	defer server.Stop()

	authURL := o.buildAuthURL(server.RedirectURI(), token)

	o.setState(StateAwaitingRedirect)
	o.logger.Info().Int("port", port).Msg("handing login URL to external browser")
	if err := o.openURL(authURL); err != nil {
		return nil, o.fail(errors.Wrap(err, "[Login] open browser"))
	}

	o.setState(StateAwaitingCallback)
	if err := server.Wait(attemptCtx); err != nil {
		return nil, o.fail(err)
	}

	o.mu.Lock()
	o.session = signedIn
	o.state = StateSucceeded
	listeners := append([]func(*Session){}, o.listeners...)
	o.mu.Unlock()

	o.logger.Info().Str("email", signedIn.Email).Msg("login succeeded")
	for _, fn := range listeners {
		fn(signedIn)
	}
	return signedIn, nil
}

// Logout clears the active session and notifies listeners.
func (o *Orchestrator) Logout() {
	o.mu.Lock()
	o.session = nil
	listeners := append([]func(*Session){}, o.listeners...)
	o.mu.Unlock()

	o.logger.Info().Msg("logged out")
	for _, fn := range listeners {
		fn(nil)
	}
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return errors.Wrapf(apperrors.ErrLoginInFlight, "[Login] state %s", o.state)
	}
	o.state = StateServerStarting
	return nil
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	o.logger.Debug().Str("state", state.String()).Msg("login state changed")
}

func (o *Orchestrator) fail(err error) error {
	o.setState(StateFailed)
	o.logger.Error().Err(err).Msg("login attempt failed")
	return err
}

func (o *Orchestrator) buildAuthURL(redirectURI, state string) string {
	v := url.Values{}
	v.Set("client_id", o.cfg.GetClientID())
	v.Set("redirect_uri", redirectURI)
	v.Set("response_type", "token")
	v.Set("scope", strings.Join(o.cfg.GetScopes(), " "))
	v.Set("state", state)
	v.Set("flowName", o.cfg.GetFlowName())
	return o.cfg.GetAuthEndpoint() + "?" + v.Encode()
}
