//go:build !windows

package jobobject

import (
	"sync"

	"golang.org/x/sys/unix"

	"keep/internal/cerr"
)

// ProcessGroupManager groups a container's processes using POSIX process
// groups, the nearest portable analogue to a Win32 Job Object: the first
// assigned pid becomes the group leader (via unix.Setpgid(pid, 0)), every
// later member joins that group, and Dispose sends SIGKILL to the whole
// group at once.
type ProcessGroupManager struct{}

// NewProcessGroup constructs a ProcessGroupManager.
func NewProcessGroup() *ProcessGroupManager { return &ProcessGroupManager{} }

func (m *ProcessGroupManager) Create(name string) (JobObject, error) {
	return &pgJob{name: name}, nil
}

type pgJob struct {
	mu       sync.Mutex
	name     string
	pgid     int
	disposed bool
}

func (j *pgJob) Name() string { return j.name }

func (j *pgJob) Assign(pid int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.disposed {
		return errDisposed
	}

	if j.pgid == 0 {
		if err := unix.Setpgid(pid, 0); err != nil {
			return cerr.Wrap(err, cerr.KindHostUnavailable, "setpgid (group leader)")
		}
		j.pgid = pid
		return nil
	}

	if err := unix.Setpgid(pid, j.pgid); err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "setpgid (join group)")
	}
	return nil
}

func (j *pgJob) Dispose() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.disposed || j.pgid == 0 {
		j.disposed = true
		return nil
	}
	j.disposed = true

	if err := unix.Kill(-j.pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "kill process group")
	}
	return nil
}
