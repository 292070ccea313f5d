package cuser

import (
	"sync"

	"keep/internal/cerr"
)

// FakeManager is an in-memory Manager used by tests and as the default on
// non-Windows development hosts where creating real OS principals isn't
// available or desirable.
type FakeManager struct {
	mu    sync.Mutex
	users map[string]*Credential
}

// NewFake constructs a FakeManager.
func NewFake() *FakeManager {
	return &FakeManager{users: make(map[string]*Credential)}
}

func (m *FakeManager) CreateUser(id string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[id]; exists {
		return nil, cerr.Newf(cerr.KindResourceExists, "user %q already exists", id)
	}

	cred := &Credential{Username: id}
	m.users[id] = cred
	return cred, nil
}

func (m *FakeManager) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *FakeManager) Restore(id string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, exists := m.users[id]
	if !exists {
		return nil, cerr.Newf(cerr.KindResourceMissing, "user %q does not exist", id)
	}
	return cred, nil
}
