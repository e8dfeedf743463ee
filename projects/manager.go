package projects

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"codestash/auth"
	"codestash/internal/apperrors"
)

const defaultCacheTTL = 5 * time.Second

// Confirmer asks the user to approve a policy decision, such as overwriting
// a stored workspace path. Refusal cancels the operation.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(prompt string) (bool, error) {
	return f(prompt)
}

// declineAll is the default confirmer: without an interactive surface, every
// confirmation-gated operation is cancelled rather than silently applied.
var declineAll = ConfirmerFunc(func(string) (bool, error) { return false, nil })

// Manager implements the user-scoped project operations. Every operation
// requires an active session and enforces ownership through the owner filter
// plus an existence pre-check. The short-lived list cache exists for UI
// responsiveness only; the store stays authoritative.
type Manager struct {
	repo      Repo
	sessions  auth.SessionSource
	confirm   Confirmer
	workspace string
	cacheTTL  time.Duration
	nowTime   func() time.Time
	logger    zerolog.Logger

	cacheMu     sync.Mutex
	cached      []Project
	cachedOwner string
	cachedAt    time.Time
	flight      singleflight.Group
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithConfirmer sets the confirmation surface for policy prompts.
func WithConfirmer(confirmer Confirmer) ManagerOption {
	return func(m *Manager) {
		m.confirm = confirmer
	}
}

// WithWorkspaceRoot sets the caller's current workspace folder.
func WithWorkspaceRoot(root string) ManagerOption {
	return func(m *Manager) {
		m.workspace = root
	}
}

// WithCacheTTL overrides the list cache lifetime.
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.cacheTTL = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithManagerLogger sets the diagnostic logger.
func WithManagerLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager initializes a new Manager with required dependencies.
func NewManager(repo Repo, sessions auth.SessionSource, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] repo is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewManager] session source is required")
	}

	m := &Manager{
		repo:     repo,
		sessions: sessions,
		confirm:  declineAll,
		cacheTTL: defaultCacheTTL,
		nowTime:  time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// List returns the caller's projects, served from the short-lived cache when
// fresh. Concurrent refreshes are deduplicated.
func (m *Manager) List(ctx context.Context) ([]Project, error) {
	session, err := m.session()
	if err != nil {
		return nil, err
	}

	if cached, ok := m.cachedList(session.UserID); ok {
		return cached, nil
	}

	result, err, _ := m.flight.Do("list:"+session.UserID, func() (interface{}, error) {
		if cached, ok := m.cachedList(session.UserID); ok {
			return cached, nil
		}
		list, err := m.repo.List(ctx, session.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "[List] repo.List")
		}
		m.storeCache(session.UserID, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return copyProjects(result.([]Project)), nil
}

// Save writes a new project for the current workspace and returns its id.
func (m *Manager) Save(ctx context.Context, name string) (string, error) {
	session, err := m.session()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.Wrap(apperrors.ErrValidation, "[Save] project name is required")
	}
	if m.workspace == "" {
		return "", errors.Wrap(apperrors.ErrValidation, "[Save] no workspace is open")
	}

	files, err := ListWorkspaceFiles(m.workspace)
	if err != nil {
		return "", errors.Wrap(err, "[Save] enumerate workspace")
	}

	id, err := m.repo.Create(ctx, Project{
		OwnerID:       session.UserID,
		Name:          name,
		WorkspacePath: m.workspace,
		Files:         files,
	})
	if err != nil {
		return "", errors.Wrap(err, "[Save] repo.Create")
	}

	m.InvalidateCache()
	m.logger.Debug().Str("id", id).Str("name", name).Msg("project saved")
	return id, nil
}

// Rename changes a project's name. A workspace-path mismatch between the
// stored project and the current workspace is overwritten only on explicit
// confirmation; refusal cancels the whole update.
func (m *Manager) Rename(ctx context.Context, id, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return errors.Wrap(apperrors.ErrValidation, "[Rename] project name is required")
	}

	project, err := m.findOwned(ctx, id)
	if err != nil {
		return err
	}

	update := Update{Name: &newName}
	if m.workspace != "" && project.WorkspacePath != "" && project.WorkspacePath != m.workspace {
		ok, err := m.confirm.Confirm(
			"Stored workspace path " + project.WorkspacePath + " differs from the current workspace " +
				m.workspace + ". Overwrite the stored path?")
		if err != nil {
			return errors.Wrap(err, "[Rename] confirm")
		}
		if !ok {
			return errors.Wrap(apperrors.ErrCancelled, "[Rename] workspace path overwrite declined")
		}
		update.WorkspacePath = &m.workspace
	}

	if err := m.repo.Update(ctx, id, update); err != nil {
		return errors.Wrap(err, "[Rename] repo.Update")
	}

	m.InvalidateCache()
	m.logger.Debug().Str("id", id).Str("name", newName).Msg("project renamed")
	return nil
}

// Delete removes a project after the existence and ownership pre-check.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.findOwned(ctx, id); err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Delete] repo.Delete")
	}

	m.InvalidateCache()
	m.logger.Debug().Str("id", id).Msg("project deleted")
	return nil
}

// Sync re-enumerates the stored workspace's files and overwrites the
// project's file list. The stored path must still exist on disk; pointing
// the sync at a different current workspace requires confirmation.
func (m *Manager) Sync(ctx context.Context, id string) error {
	project, err := m.findOwned(ctx, id)
	if err != nil {
		return err
	}
	if project.WorkspacePath == "" {
		return errors.Wrap(apperrors.ErrNotFound, "[Sync] project has no workspace path recorded")
	}
	if info, err := os.Stat(project.WorkspacePath); err != nil || !info.IsDir() {
		return errors.Wrapf(apperrors.ErrPathNotFound, "[Sync] %s", project.WorkspacePath)
	}

	if m.workspace != "" && m.workspace != project.WorkspacePath {
		ok, err := m.confirm.Confirm(
			"Project was saved from " + project.WorkspacePath + " but the current workspace is " +
				m.workspace + ". Sync from the stored folder?")
		if err != nil {
			return errors.Wrap(err, "[Sync] confirm")
		}
		if !ok {
			return errors.Wrap(apperrors.ErrCancelled, "[Sync] sync from stored folder declined")
		}
	}

	files, err := ListWorkspaceFiles(project.WorkspacePath)
	if err != nil {
		return errors.Wrap(err, "[Sync] enumerate workspace")
	}

	if err := m.repo.Update(ctx, id, Update{Files: &files}); err != nil {
		return errors.Wrap(err, "[Sync] repo.Update")
	}

	m.InvalidateCache()
	m.logger.Debug().Str("id", id).Int("files", len(files)).Msg("project synced")
	return nil
}

// InvalidateCache drops the cached list so the next List hits the store.
// Call it on session changes and after external writes.
func (m *Manager) InvalidateCache() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cached = nil
	m.cachedOwner = ""
	m.cachedAt = time.Time{}
}

func (m *Manager) session() (*auth.Session, error) {
	session := m.sessions.Current()
	if session == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return session, nil
}

// findOwned confirms the project exists in the caller's own list. A missing
// or foreign id is indistinguishable from the caller's point of view.
func (m *Manager) findOwned(ctx context.Context, id string) (*Project, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, errors.Wrapf(apperrors.ErrNotFound, "[findOwned] %s", id)
}

func (m *Manager) cachedList(ownerID string) ([]Project, bool) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if m.cachedOwner != ownerID || m.cached == nil {
		return nil, false
	}
	if m.nowTime().Sub(m.cachedAt) >= m.cacheTTL {
		return nil, false
	}
	return copyProjects(m.cached), true
}

func (m *Manager) storeCache(ownerID string, list []Project) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cached = copyProjects(list)
	m.cachedOwner = ownerID
	m.cachedAt = m.nowTime()
}

func copyProjects(list []Project) []Project {
	out := make([]Project, len(list))
	copy(out, list)
	return out
}
