//go:build windows

package cuser

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"keep/internal/cerr"
	"keep/internal/procrun"
)

// WindowsManager creates real local user accounts by shelling out to
// net.exe through internal/procrun, rather than binding the
// NetUserAdd/NetUserDel Win32 APIs directly.
type WindowsManager struct {
	runner procrun.Runner
	group  string // optional group to add new users to, e.g. "Users"

	mu    sync.Mutex
	creds map[string]*Credential
}

// NewWindows constructs a WindowsManager. group may be empty.
func NewWindows(runner procrun.Runner, group string) *WindowsManager {
	return &WindowsManager{runner: runner, group: group, creds: make(map[string]*Credential)}
}

func (m *WindowsManager) CreateUser(id string) (*Credential, error) {
	m.mu.Lock()
	if _, exists := m.creds[id]; exists {
		m.mu.Unlock()
		return nil, cerr.Newf(cerr.KindResourceExists, "user %q already exists", id)
	}
	m.mu.Unlock()

	password, err := randomPassword()
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "generate password")
	}

	if err := m.runNet(context.Background(), "user", id, password, "/add", "/expires:never"); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, fmt.Sprintf("net user /add %s", id))
	}

	if m.group != "" {
		if err := m.runNet(context.Background(), "localgroup", m.group, id, "/add"); err != nil {
			_ = m.runNet(context.Background(), "user", id, "/delete")
			return nil, cerr.Wrap(err, cerr.KindHostUnavailable, fmt.Sprintf("net localgroup %s /add %s", m.group, id))
		}
	}

	cred := &Credential{Username: id, Token: password}

	m.mu.Lock()
	m.creds[id] = cred
	m.mu.Unlock()

	return cred, nil
}

func (m *WindowsManager) DeleteUser(id string) error {
	m.mu.Lock()
	delete(m.creds, id)
	m.mu.Unlock()

	if err := m.runNet(context.Background(), "user", id, "/delete"); err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, fmt.Sprintf("net user /delete %s", id))
	}
	return nil
}

func (m *WindowsManager) Restore(id string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, exists := m.creds[id]
	if !exists {
		return nil, cerr.Newf(cerr.KindResourceMissing, "user %q credential not retained across restart", id)
	}
	return cred, nil
}

func (m *WindowsManager) runNet(ctx context.Context, args ...string) error {
	h, err := m.runner.Run(ctx, procrun.RunSpec{Path: "net", Args: args})
	if err != nil {
		return err
	}
	if code := h.Wait(); code != 0 {
		return fmt.Errorf("net %v exited %d", args, code)
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf) + "Aa1!", nil
}
