package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"codestash/internal/apperrors"
	"codestash/projects"
)

var _ projects.Repo = (*FakeProjectRepo)(nil)

// FakeProjectRepo is an in-memory Repo for tests. It preserves insertion
// order and assigns timestamps the way the real store would.
type FakeProjectRepo struct {
	mu    sync.RWMutex
	docs  map[string]*projects.Project
	order []string

	// NowTime is injectable for deterministic timestamps.
	NowTime func() time.Time

	// Call counters for asserting that failed pre-checks perform no mutation.
	ListCalls   int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

func NewFakeProjectRepo() *FakeProjectRepo {
	return &FakeProjectRepo{
		docs:    make(map[string]*projects.Project),
		NowTime: time.Now,
	}
}

func (fr *FakeProjectRepo) List(_ context.Context, ownerID string) ([]projects.Project, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.ListCalls++

	var out []projects.Project
	for _, id := range fr.order {
		if doc := fr.docs[id]; doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (fr *FakeProjectRepo) Create(_ context.Context, project projects.Project) (string, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.CreateCalls++

	now := fr.NowTime()
	project.ID = uuid.New().String()
	project.CreatedAt = now
	project.UpdatedAt = now

	fr.docs[project.ID] = &project
	fr.order = append(fr.order, project.ID)
	return project.ID, nil
}

func (fr *FakeProjectRepo) Update(_ context.Context, id string, update projects.Update) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.UpdateCalls++

	doc, ok := fr.docs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if update.Name != nil {
		doc.Name = *update.Name
	}
	if update.WorkspacePath != nil {
		doc.WorkspacePath = *update.WorkspacePath
	}
	if update.Files != nil {
		doc.Files = append([]string{}, (*update.Files)...)
	}
	doc.UpdatedAt = fr.NowTime()
	return nil
}

func (fr *FakeProjectRepo) Delete(_ context.Context, id string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.DeleteCalls++

	if _, ok := fr.docs[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(fr.docs, id)
	for i, docID := range fr.order {
		if docID == id {
			fr.order = append(fr.order[:i], fr.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a stored document for assertions.
func (fr *FakeProjectRepo) Get(id string) (projects.Project, bool) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	doc, ok := fr.docs[id]
	if !ok {
		return projects.Project{}, false
	}
	return *doc, true
}
