// Package cuser implements the UserManager capability (§6): creating and
// deleting the local principal that exclusively owns a container.
package cuser

import "keep/internal/procrun"

// Credential is the material callers need to launch a process as a
// container's user: a principal name plus whatever platform-specific token
// or secret the Manager implementation produces.
type Credential = procrun.Credential

// Manager is the capability interface the Container Service depends on.
type Manager interface {
	// CreateUser provisions a fresh local principal named id and returns its
	// Credential. Fails with cerr.KindResourceExists if id is already taken.
	CreateUser(id string) (*Credential, error)
	// DeleteUser removes the principal. A missing principal is not an error.
	DeleteUser(id string) error
	// Restore re-attaches to an existing principal (used by Container
	// Service Restore), failing with cerr.KindResourceMissing if absent.
	Restore(id string) (*Credential, error)
}
