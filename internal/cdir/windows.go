//go:build windows

package cdir

import (
	"context"

	"keep/internal/cerr"
	"keep/internal/procrun"
)

// WindowsFS applies ACLs by shelling out to icacls.exe through
// internal/procrun, rather than binding the raw Win32 ACL APIs directly.
type WindowsFS struct {
	runner procrun.Runner
}

// NewWindowsFS constructs a WindowsFS.
func NewWindowsFS(runner procrun.Runner) *WindowsFS {
	return &WindowsFS{runner: runner}
}

func (w *WindowsFS) ApplyACL(path string, entries []AccessEntry) error {
	args := []string{path, "/inheritance:r"}
	for _, e := range entries {
		if e.Level == AccessNone {
			continue
		}
		args = append(args, "/grant:r", e.Principal+":"+icaclsPerm(e.Level))
	}

	h, err := w.runner.Run(context.Background(), procrun.RunSpec{Path: "icacls", Args: args})
	if err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "run icacls")
	}
	if code := h.Wait(); code != 0 {
		return cerr.Newf(cerr.KindHostUnavailable, "icacls %v exited %d", args, code)
	}
	return nil
}

func icaclsPerm(level AccessLevel) string {
	switch level {
	case AccessReadWrite:
		return "(OI)(CI)M"
	default:
		return "(OI)(CI)RX"
	}
}
