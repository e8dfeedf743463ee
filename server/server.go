// Package server is the local bridge the host editor talks to. It accepts
// tagged command messages over loopback HTTP and forwards them to the auth
// and project services.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"codestash/auth"
	"codestash/internal/config"
	"codestash/projects"
)

// AuthService is the slice of the login orchestrator the bridge uses.
type AuthService interface {
	Login(ctx context.Context) (*auth.Session, error)
	Logout()
	Current() *auth.Session
	State() auth.State
}

// ProjectService is the slice of the project manager the bridge uses.
type ProjectService interface {
	List(ctx context.Context) ([]projects.Project, error)
	Save(ctx context.Context, name string) (string, error)
	Rename(ctx context.Context, id, newName string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context, id string) error
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	addr     string
	mux      *http.ServeMux
	routes   []string
	auth     AuthService
	projects ProjectService
	logger   zerolog.Logger

	httpServer *http.Server
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// New initializes a new Server with required dependencies.
func New(cfg config.Config, authService AuthService, projectService ProjectService, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if authService == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if projectService == nil {
		return nil, errors.New("[Server New] project service is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		addr:     cfg.GetBridgeAddr(),
		mux:      http.NewServeMux(),
		auth:     authService,
		projects: projectService,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Start binds the loopback listener and serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "[Start] listen %s", s.addr)
	}

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("bridge listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "[Start] shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "[Start] serve")
		}
		return nil
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
