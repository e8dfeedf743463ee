package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codestash/auth"
	"codestash/internal/apperrors"
	"codestash/internal/config"
	"codestash/projects"
	"codestash/server"
)

type authStub struct {
	session    *auth.Session
	loginErr   error
	loginCalls int
	logouts    int
}

func (a *authStub) Login(context.Context) (*auth.Session, error) {
	a.loginCalls++
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.session, nil
}

func (a *authStub) Logout()                { a.logouts++ }
func (a *authStub) Current() *auth.Session { return a.session }
func (a *authStub) State() auth.State      { return auth.StateIdle }

type projectsStub struct {
	list    []projects.Project
	listErr error
	savedID string
	opErr   error

	saves   []string
	renames [][2]string
	deletes []string
	syncs   []string
}

func (p *projectsStub) List(context.Context) ([]projects.Project, error) {
	return p.list, p.listErr
}

func (p *projectsStub) Save(_ context.Context, name string) (string, error) {
	p.saves = append(p.saves, name)
	return p.savedID, p.opErr
}

func (p *projectsStub) Rename(_ context.Context, id, newName string) error {
	p.renames = append(p.renames, [2]string{id, newName})
	return p.opErr
}

func (p *projectsStub) Delete(_ context.Context, id string) error {
	p.deletes = append(p.deletes, id)
	return p.opErr
}

func (p *projectsStub) Sync(_ context.Context, id string) error {
	p.syncs = append(p.syncs, id)
	return p.opErr
}

func newBridge(t *testing.T, authService server.AuthService, projectService server.ProjectService) *server.Server {
	t.Helper()
	srv, err := server.New(config.New(), authService, projectService)
	require.NoError(t, err)
	return srv
}

func postMessage(t *testing.T, srv *server.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, server.RouteMessage, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestMessageHandler_Login(t *testing.T) {
	a := &authStub{session: &auth.Session{UserID: "uid-1", Email: "dev@example.com"}}
	srv := newBridge(t, a, &projectsStub{})

	rec := postMessage(t, srv, `{"command":"login"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, a.loginCalls)

	payload := decodeBody(t, rec)
	require.Equal(t, true, payload["signedIn"])
	require.Equal(t, "uid-1", payload["userId"])
	require.Equal(t, "dev@example.com", payload["email"])
}

func TestMessageHandler_Logout(t *testing.T) {
	a := &authStub{}
	srv := newBridge(t, a, &projectsStub{})

	rec := postMessage(t, srv, `{"command":"logout"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, a.logouts)
}

func TestMessageHandler_ListProjects(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &projectsStub{list: []projects.Project{{
		ID:            "doc-1",
		Name:          "alpha",
		WorkspacePath: "/work/alpha",
		Files:         []string{"a.txt"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}}}
	srv := newBridge(t, &authStub{}, p)

	rec := postMessage(t, srv, `{"command":"listProjects"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "doc-1", list[0]["id"])
	require.Equal(t, "alpha", list[0]["name"])
}

func TestMessageHandler_ProjectCommands(t *testing.T) {
	p := &projectsStub{savedID: "new-doc"}
	srv := newBridge(t, &authStub{}, p)

	rec := postMessage(t, srv, `{"command":"saveProject","name":"alpha"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "new-doc", decodeBody(t, rec)["id"])
	require.Equal(t, []string{"alpha"}, p.saves)

	rec = postMessage(t, srv, `{"command":"updateProject","projectId":"doc-1","name":"beta"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, [][2]string{{"doc-1", "beta"}}, p.renames)

	rec = postMessage(t, srv, `{"command":"deleteProject","projectId":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"doc-1"}, p.deletes)

	rec = postMessage(t, srv, `{"command":"syncProject","projectId":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"doc-1"}, p.syncs)
}

func TestMessageHandler_RejectsBadMessages(t *testing.T) {
	p := &projectsStub{}
	srv := newBridge(t, &authStub{}, p)

	tests := []struct {
		name string
		body string
	}{
		{"UnknownCommand", `{"command":"dropTables"}`},
		{"EmptyCommand", `{}`},
		{"SaveWithoutName", `{"command":"saveProject"}`},
		{"UpdateWithoutID", `{"command":"updateProject","name":"beta"}`},
		{"UpdateWithoutName", `{"command":"updateProject","projectId":"doc-1"}`},
		{"DeleteWithoutID", `{"command":"deleteProject"}`},
		{"SyncWithoutID", `{"command":"syncProject"}`},
		{"MalformedJSON", `{"command":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postMessage(t, srv, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	require.Empty(t, p.saves)
	require.Empty(t, p.renames)
	require.Empty(t, p.deletes)
	require.Empty(t, p.syncs)
}

func TestMessageHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Unauthenticated", apperrors.ErrUnauthenticated, http.StatusUnauthorized},
		{"Validation", apperrors.ErrValidation, http.StatusBadRequest},
		{"NotFound", apperrors.ErrNotFound, http.StatusNotFound},
		{"PathNotFound", apperrors.ErrPathNotFound, http.StatusNotFound},
		{"Cancelled", apperrors.ErrCancelled, http.StatusConflict},
		{"Network", apperrors.ErrNetwork, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newBridge(t, &authStub{}, &projectsStub{opErr: tc.err, listErr: tc.err})
			rec := postMessage(t, srv, `{"command":"deleteProject","projectId":"doc-1"}`)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMessageHandler_LoginFailures(t *testing.T) {
	t.Run("InFlight", func(t *testing.T) {
		srv := newBridge(t, &authStub{loginErr: apperrors.ErrLoginInFlight}, &projectsStub{})
		rec := postMessage(t, srv, `{"command":"login"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := newBridge(t, &authStub{loginErr: apperrors.ErrCallbackTimeout}, &projectsStub{})
		rec := postMessage(t, srv, `{"command":"login"}`)
		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestSessionHandler(t *testing.T) {
	t.Run("SignedOut", func(t *testing.T) {
		srv := newBridge(t, &authStub{}, &projectsStub{})
		req := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		payload := decodeBody(t, rec)
		require.Equal(t, false, payload["signedIn"])
	})

	t.Run("SignedIn", func(t *testing.T) {
		srv := newBridge(t, &authStub{session: &auth.Session{UserID: "uid-1", Email: "dev@example.com"}}, &projectsStub{})
		req := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		payload := decodeBody(t, rec)
		require.Equal(t, true, payload["signedIn"])
		require.Equal(t, "uid-1", payload["userId"])
	})
}

func TestHealthHandler(t *testing.T) {
	srv := newBridge(t, &authStub{}, &projectsStub{})
	req := httptest.NewRequest(http.MethodGet, server.RouteHealth, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}
