// Package portmgr implements the TcpPortManager capability (§6): reserving
// and releasing TCP ports on behalf of a container. Reservations are
// represented with github.com/docker/go-connections/nat.Port, the same
// representation docker's own port-publishing code uses, rather than a bare
// int.
package portmgr

import (
	"strconv"
	"sync"

	"github.com/docker/go-connections/nat"
	"golang.org/x/time/rate"

	"keep/internal/cerr"
)

// Manager is the capability interface callers use to reserve ports on
// behalf of a container. The Container Service itself does not call it.
type Manager interface {
	Reserve(containerID string, port int) (nat.Port, error)
	Release(containerID string, port nat.Port) error
}

// InMemory is the default Manager: it tracks reservations in a map and
// rate-limits reservation attempts per container, damping a bursty
// container retrying a port scan.
type InMemory struct {
	mu         sync.Mutex
	reserved   map[nat.Port]string // port -> owning container id
	limiters   map[string]*rate.Limiter
	limitEvery rate.Limit
	burst      int
}

// NewInMemory constructs an InMemory port manager. Each container may
// attempt up to burst reservations immediately, refilling at limitEvery
// reservations per second thereafter.
func NewInMemory(limitEvery rate.Limit, burst int) *InMemory {
	return &InMemory{
		reserved:   make(map[nat.Port]string),
		limiters:   make(map[string]*rate.Limiter),
		limitEvery: limitEvery,
		burst:      burst,
	}
}

func (m *InMemory) Reserve(containerID string, port int) (nat.Port, error) {
	p, err := nat.NewPort("tcp", strconv.Itoa(port))
	if err != nil {
		return "", cerr.Wrap(err, cerr.KindPortAllocation, "parse port")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, ok := m.limiters[containerID]
	if !ok {
		limiter = rate.NewLimiter(m.limitEvery, m.burst)
		m.limiters[containerID] = limiter
	}
	if !limiter.Allow() {
		return "", cerr.Newf(cerr.KindPortAllocation, "reservation rate limit exceeded for container %s", containerID)
	}

	if owner, exists := m.reserved[p]; exists {
		return "", cerr.Newf(cerr.KindPortAllocation, "port %s already reserved by %s", p, owner)
	}

	m.reserved[p] = containerID
	return p, nil
}

func (m *InMemory) Release(containerID string, port nat.Port) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, exists := m.reserved[port]
	if !exists {
		return nil
	}
	if owner != containerID {
		return cerr.Newf(cerr.KindInvalidInput, "port %s is not owned by %s", port, containerID)
	}
	delete(m.reserved, port)
	return nil
}
