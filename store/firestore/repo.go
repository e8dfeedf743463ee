// Package firestore is the remote document store client for the projects
// collection, speaking the Firestore REST API with the backend session
// credential as bearer.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"codestash/auth"
	"codestash/internal/apperrors"
	"codestash/internal/config"
	"codestash/projects"
)

// Repo implements projects.Repo against the remote store. It holds no
// state of its own; the store is the source of truth.
type Repo struct {
	baseURL    string
	projectID  string
	collection string
	httpClient *http.Client
	sessions   auth.SessionSource
	logger     zerolog.Logger
}

// RepoOption defines a function type to modify the Repo instance.
type RepoOption func(*Repo)

// WithHTTPClient sets the HTTP client used for store calls.
func WithHTTPClient(client *http.Client) RepoOption {
	return func(r *Repo) {
		r.httpClient = client
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) RepoOption {
	return func(r *Repo) {
		r.logger = logger
	}
}

// NewRepo initializes a new Repo with required dependencies.
func NewRepo(cfg config.StoreConfig, sessions auth.SessionSource, options ...RepoOption) (*Repo, error) {
	if cfg == nil {
		return nil, errors.New("[NewRepo] store config is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewRepo] session source is required")
	}

	r := &Repo{
		baseURL:    cfg.GetFirestoreBaseURL(),
		projectID:  cfg.GetStoreProjectID(),
		collection: cfg.GetProjectsCollection(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sessions:   sessions,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

var _ projects.Repo = (*Repo)(nil)

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type structuredQuery struct {
	From  []collectionSelector `json:"from"`
	Where *queryFilter         `json:"where,omitempty"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type queryFilter struct {
	FieldFilter fieldFilter `json:"fieldFilter"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value value          `json:"value"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type runQueryResult struct {
	Document *document `json:"document,omitempty"`
}

// List queries the collection filtered by owner. Order is whatever the store
// delivers; no client-side sort is applied.
func (r *Repo) List(ctx context.Context, ownerID string) ([]projects.Project, error) {
	body := runQueryRequest{
		StructuredQuery: structuredQuery{
			From: []collectionSelector{{CollectionID: r.collection}},
			Where: &queryFilter{
				FieldFilter: fieldFilter{
					Field: fieldReference{FieldPath: fieldUserID},
					Op:    "EQUAL",
					Value: stringValue(ownerID),
				},
			},
		},
	}

	var results []runQueryResult
	if err := r.do(ctx, http.MethodPost, r.documentsURL()+":runQuery", body, &results); err != nil {
		return nil, errors.Wrap(err, "[List] runQuery")
	}

	var list []projects.Project
	for _, result := range results {
		if result.Document == nil {
			continue
		}
		list = append(list, decodeProject(*result.Document))
	}
	return list, nil
}

// Create writes a new document; the store assigns id and both timestamps.
func (r *Repo) Create(ctx context.Context, project projects.Project) (string, error) {
	var created document
	body := document{Fields: encodeProject(project)}
	target := fmt.Sprintf("%s/%s", r.documentsURL(), r.collection)
	if err := r.do(ctx, http.MethodPost, target, body, &created); err != nil {
		return "", errors.Wrap(err, "[Create] createDocument")
	}

	id := docID(created.Name)
	r.logger.Debug().Str("id", id).Msg("document created")
	return id, nil
}

// Update patches only the fields named by the update mask; updateTime is
// reassigned by the store.
func (r *Repo) Update(ctx context.Context, id string, update projects.Update) error {
	fields, mask := encodeUpdate(update)
	if len(mask) == 0 {
		return nil
	}

	q := url.Values{}
	for _, path := range mask {
		q.Add("updateMask.fieldPaths", path)
	}
	target := fmt.Sprintf("%s/%s/%s?%s", r.documentsURL(), r.collection, id, q.Encode())
	if err := r.do(ctx, http.MethodPatch, target, document{Fields: fields}, nil); err != nil {
		return errors.Wrapf(err, "[Update] patchDocument %s", id)
	}
	return nil
}

// Delete removes the document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	target := fmt.Sprintf("%s/%s/%s", r.documentsURL(), r.collection, id)
	if err := r.do(ctx, http.MethodDelete, target, nil, nil); err != nil {
		return errors.Wrapf(err, "[Delete] deleteDocument %s", id)
	}
	return nil
}

func (r *Repo) documentsURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents", r.baseURL, r.projectID)
}

func (r *Repo) do(ctx context.Context, method, target string, in, out interface{}) error {
	session := r.sessions.Current()
	if session == nil {
		return apperrors.ErrUnauthenticated
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "[do] marshal request")
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return errors.Wrap(err, "[do] build request")
	}
	req.Header.Set("Authorization", "Bearer "+session.IDToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(apperrors.ErrNetwork, "[do] %s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(apperrors.ErrUnauthenticated, "[do] store rejected credential: %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Wrapf(apperrors.ErrNetwork, "[do] store returned %d: %s", resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "[do] decode response")
	}
	return nil
}
