package firestore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codestash/auth"
	"codestash/internal/apperrors"
	"codestash/projects"
	"codestash/store/firestore"
)

type stubSessions struct {
	session *auth.Session
}

func (s *stubSessions) Current() *auth.Session { return s.session }

type storeConfigStub struct {
	baseURL string
}

func (c *storeConfigStub) GetAPIKey() string             { return "test-key" }
func (c *storeConfigStub) GetStoreProjectID() string     { return "demo-project" }
func (c *storeConfigStub) GetFirestoreBaseURL() string   { return c.baseURL }
func (c *storeConfigStub) GetIdentityBaseURL() string    { return c.baseURL }
func (c *storeConfigStub) GetProjectsCollection() string { return "projects" }
func (c *storeConfigStub) GetListCacheTTL() time.Duration {
	return 5 * time.Second
}

func signedInSessions() *stubSessions {
	return &stubSessions{session: &auth.Session{
		UserID:  "uid-1",
		Email:   "dev@example.com",
		IDToken: "id-token-1",
	}}
}

func newRepo(t *testing.T, handler http.Handler, sessions auth.SessionSource) *firestore.Repo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	repo, err := firestore.NewRepo(&storeConfigStub{baseURL: srv.URL}, sessions, firestore.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return repo
}

const documentsPath = "/v1/projects/demo-project/databases/(default)/documents"

func TestRepo_List(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	var gotQuery map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+documentsPath+":runQuery", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer id-token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))

		fmt.Fprintf(w, `[
			{"document": {
				"name": "projects/demo-project/databases/(default)/documents/projects/doc-1",
				"fields": {
					"userId": {"stringValue": "uid-1"},
					"projectName": {"stringValue": "alpha"},
					"workspacePath": {"stringValue": "/work/alpha"},
					"files": {"arrayValue": {"values": [{"stringValue": "a.txt"}, {"stringValue": "b.txt"}]}}
				},
				"createTime": %q,
				"updateTime": %q
			}},
			{"readTime": "2026-03-01T11:00:00Z"}
		]`, created.Format(time.RFC3339), updated.Format(time.RFC3339))
	})

	repo := newRepo(t, mux, signedInSessions())
	list, err := repo.List(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.Equal(t, projects.Project{
		ID:            "doc-1",
		OwnerID:       "uid-1",
		Name:          "alpha",
		WorkspacePath: "/work/alpha",
		Files:         []string{"a.txt", "b.txt"},
		CreatedAt:     created,
		UpdatedAt:     updated,
	}, list[0])

	filter := gotQuery["structuredQuery"].(map[string]any)["where"].(map[string]any)["fieldFilter"].(map[string]any)
	require.Equal(t, "EQUAL", filter["op"])
	require.Equal(t, "userId", filter["field"].(map[string]any)["fieldPath"])
	require.Equal(t, "uid-1", filter["value"].(map[string]any)["stringValue"])
}

func TestRepo_Create(t *testing.T) {
	var gotDoc map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+documentsPath+"/projects", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		fmt.Fprint(w, `{
			"name": "projects/demo-project/databases/(default)/documents/projects/new-doc",
			"createTime": "2026-03-01T10:00:00Z",
			"updateTime": "2026-03-01T10:00:00Z"
		}`)
	})

	repo := newRepo(t, mux, signedInSessions())
	id, err := repo.Create(context.Background(), projects.Project{
		OwnerID:       "uid-1",
		Name:          "alpha",
		WorkspacePath: "/work/alpha",
		Files:         []string{"a.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, "new-doc", id)

	fields := gotDoc["fields"].(map[string]any)
	require.Equal(t, "uid-1", fields["userId"].(map[string]any)["stringValue"])
	require.Equal(t, "alpha", fields["projectName"].(map[string]any)["stringValue"])
}

func TestRepo_Update_MasksChangedFieldsOnly(t *testing.T) {
	var gotMask []string
	var gotDoc map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH "+documentsPath+"/projects/doc-1", func(w http.ResponseWriter, r *http.Request) {
		gotMask = r.URL.Query()["updateMask.fieldPaths"]
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		fmt.Fprint(w, `{}`)
	})

	repo := newRepo(t, mux, signedInSessions())
	name := "beta"
	err := repo.Update(context.Background(), "doc-1", projects.Update{Name: &name})
	require.NoError(t, err)

	require.Equal(t, []string{"projectName"}, gotMask)
	fields := gotDoc["fields"].(map[string]any)
	require.Len(t, fields, 1)
	require.Equal(t, "beta", fields["projectName"].(map[string]any)["stringValue"])
}

func TestRepo_Update_EmptyUpdateSkipsCall(t *testing.T) {
	called := false
	repo := newRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), signedInSessions())

	require.NoError(t, repo.Update(context.Background(), "doc-1", projects.Update{}))
	require.False(t, called)
}

func TestRepo_Delete(t *testing.T) {
	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE "+documentsPath+"/projects/doc-1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		fmt.Fprint(w, `{}`)
	})

	repo := newRepo(t, mux, signedInSessions())
	require.NoError(t, repo.Delete(context.Background(), "doc-1"))
	require.True(t, deleted)
}

func TestRepo_ErrorMapping(t *testing.T) {
	t.Run("NoSession", func(t *testing.T) {
		repo := newRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("store must not be reached without a session")
		}), &stubSessions{})

		_, err := repo.List(context.Background(), "uid-1")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}), signedInSessions())

		require.ErrorIs(t, repo.Delete(context.Background(), "gone"), apperrors.ErrNotFound)
	})

	t.Run("RejectedCredential", func(t *testing.T) {
		repo := newRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}), signedInSessions())

		_, err := repo.List(context.Background(), "uid-1")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("ServerError", func(t *testing.T) {
		repo := newRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
		}), signedInSessions())

		_, err := repo.List(context.Background(), "uid-1")
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Contains(t, err.Error(), "backend unavailable")
	})
}
