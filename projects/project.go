// Package projects manages user-scoped project metadata against the remote
// document store.
package projects

import "time"

// Project is one saved project document. OwnerID must equal the caller's
// session user id for every read or mutation.
type Project struct {
	ID            string
	OwnerID       string
	Name          string
	WorkspacePath string
	Files         []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Update is a partial mutation of a stored project. Nil fields are left
// untouched; timestamps are assigned by the store.
type Update struct {
	Name          *string
	WorkspacePath *string
	Files         *[]string
}
