// Package jobobject implements the JobObject capability (§6): a kernel-level
// grouping that lets the container service terminate every process a
// container has launched in one call. The Windows production adapter uses
// golang.org/x/sys/windows; the portable adapter uses a POSIX process group
// as the nearest analogue.
package jobobject

import "keep/internal/cerr"

// JobObject is the capability interface the Container entity depends on.
// Construction is by name (the container id), processes are attached one at
// a time as the container host agent and its children start, and Dispose
// tears the whole group down.
type JobObject interface {
	Name() string
	Assign(pid int) error
	Dispose() error
}

// Manager constructs JobObjects. Exactly one concrete implementation is
// active per process: NewWindows (build-tagged) on Windows, NewProcessGroup
// elsewhere, or NewFake in tests.
type Manager interface {
	Create(name string) (JobObject, error)
}

var errDisposed = cerr.New(cerr.KindResourceMissing, "job object already disposed")
