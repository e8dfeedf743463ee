package projects

import "context"

// Repo is the remote document collection, scoped by owner. The store is the
// sole source of truth; implementations must not cache.
type Repo interface {
	// List returns the owner's projects in the order the store delivers them.
	List(ctx context.Context, ownerID string) ([]Project, error)

	// Create writes a new document and returns the store-assigned id.
	// CreatedAt/UpdatedAt are assigned by the store.
	Create(ctx context.Context, project Project) (string, error)

	// Update applies a partial mutation to an existing document.
	Update(ctx context.Context, id string, update Update) error

	// Delete removes the document.
	Delete(ctx context.Context, id string) error
}
