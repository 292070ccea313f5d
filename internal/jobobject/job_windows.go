//go:build windows

package jobobject

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"keep/internal/cerr"
)

// WindowsManager creates real Win32 Job Objects via windows.CreateJobObject.
type WindowsManager struct{}

// NewWindows constructs a WindowsManager.
func NewWindows() *WindowsManager { return &WindowsManager{} }

func (m *WindowsManager) Create(name string) (JobObject, error) {
	jobNamePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "encode job object name")
	}

	handle, err := windows.CreateJobObject(nil, jobNamePtr)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "CreateJobObject")
	}

	return &winJob{name: name, handle: handle}, nil
}

type winJob struct {
	mu       sync.RWMutex
	name     string
	handle   windows.Handle
	disposed bool
}

func (j *winJob) Name() string { return j.name }

func (j *winJob) Assign(pid int) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.disposed {
		return errDisposed
	}

	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "OpenProcess")
	}
	defer windows.CloseHandle(proc)

	if err := windows.AssignProcessToJobObject(j.handle, proc); err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "AssignProcessToJobObject")
	}
	return nil
}

func (j *winJob) Dispose() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.disposed {
		return nil
	}
	j.disposed = true
	if err := windows.CloseHandle(j.handle); err != nil {
		return errors.Wrap(err, "close job object handle")
	}
	return nil
}
