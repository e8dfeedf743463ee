// Package callback runs the temporary loopback HTTP server that receives the
// provider redirect for one login attempt.
//
// The provider returns the access token in the URL fragment, so the flow is
// two-hop: GET /oauth/callback serves a page that reads the fragment
// client-side and re-submits it as query parameters to GET /oauth/tokens,
// which is the endpoint that actually resolves the attempt.
package callback

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"codestash/auth/statetoken"
	"codestash/internal/apperrors"
)

//go:embed templates/landing.html
var landingHTML string

const (
	// RouteCallback is the provider redirect landing page.
	RouteCallback = "/oauth/callback"
	// RouteTokens receives the fragment contents as query parameters.
	RouteTokens = "/oauth/tokens"
)

// ExchangeFunc runs the identity exchange for a delivered access token.
// It is invoked at most once per server.
type ExchangeFunc func(ctx context.Context, accessToken string) error

// Server is the ephemeral callback listener. It binds an OS-assigned
// loopback port, answers exactly one token delivery, then must be stopped.
type Server struct {
	expectedState string
	exchange      ExchangeFunc
	logger        zerolog.Logger

	listener net.Listener
	server   *http.Server
	port     int
	resolved atomic.Bool
	resultCh chan error
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a callback server bound to one login attempt. expectedState is
// the attempt's anti-forgery token; exchange resolves the delivered access
// token into a signed-in session.
func New(expectedState string, exchange ExchangeFunc, options ...ServerOption) *Server {
	s := &Server{
		expectedState: expectedState,
		exchange:      exchange,
		logger:        zerolog.Nop(),
		resultCh:      make(chan error, 1),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Start binds an OS-chosen free loopback port and begins serving. The server
// shuts down when the context is cancelled, so an abandoned browser tab can
// never leak the socket past the attempt deadline.
func (s *Server) Start(ctx context.Context) (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, errors.Wrapf(apperrors.ErrBind, "[Start] listen: %v", err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RouteCallback, s.handleLanding)
	mux.HandleFunc("GET "+RouteTokens, s.handleTokens)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.deliver(errors.Wrap(err, "[Start] serve"))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Debug().Int("port", s.port).Msg("callback server started")
	return s.port, nil
}

// RedirectURI returns the redirect_uri to embed in the authorization URL.
func (s *Server) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, RouteCallback)
}

// Wait blocks until the attempt is resolved or the context ends. A context
// deadline is reported as ErrCallbackTimeout.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.resultCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.ErrCallbackTimeout
		}
		return ctx.Err()
	}
}

// Stop closes the listener and in-flight connections. Safe to call more than
// once and on both success and failure paths.
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(landingHTML))
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	// One-shot guard: a redelivered callback must never re-run the exchange.
	if !s.resolved.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("token delivery after attempt already resolved")
		http.Error(w, apperrors.ErrAlreadyResolved.Error(), http.StatusConflict)
		return
	}

	query := r.URL.Query()
	accessToken := query.Get("access_token")
	receivedState := query.Get("state")

	if !statetoken.Validate(receivedState, s.expectedState) {
		s.logger.Warn().Msg("invalid state parameter received")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		s.deliver(apperrors.ErrInvalidState)
		return
	}

	if accessToken == "" {
		s.logger.Warn().Msg("no access token received")
		http.Error(w, "No access token provided", http.StatusBadRequest)
		s.deliver(errors.Wrap(apperrors.ErrValidation, "[handleTokens] no access token provided"))
		return
	}

	if err := s.exchange(r.Context(), accessToken); err != nil {
		http.Error(w, "Authentication failed: "+err.Error(), http.StatusBadRequest)
		s.deliver(err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Authentication successful"))
	s.deliver(nil)
}

func (s *Server) deliver(err error) {
	select {
	case s.resultCh <- err:
	default:
	}
}
