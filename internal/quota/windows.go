//go:build windows

package quota

import (
	"context"
	"strconv"

	"keep/internal/cerr"
	"keep/internal/procrun"
)

// WindowsManager configures per-directory quotas by shelling out to
// fsutil.exe through internal/procrun, rather than binding the underlying
// Win32 APIs directly.
type WindowsManager struct {
	runner procrun.Runner
}

// NewWindows constructs a WindowsManager.
func NewWindows(runner procrun.Runner) *WindowsManager {
	return &WindowsManager{runner: runner}
}

func (m *WindowsManager) CreateQuotaControl(directory string, limit string) (Control, error) {
	bytes, err := ParseLimit(limit)
	if err != nil {
		return nil, err
	}

	h, err := m.runner.Run(context.Background(), procrun.RunSpec{
		Path: "fsutil",
		Args: []string{"quota", "modify", directory, strconv.FormatInt(bytes, 10), strconv.FormatInt(bytes, 10), "Everyone"},
	})
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindQuota, "run fsutil quota modify")
	}
	if code := h.Wait(); code != 0 {
		return nil, cerr.Newf(cerr.KindQuota, "fsutil quota modify exited %d", code)
	}

	return &winControl{dir: directory, limit: bytes, runner: m.runner}, nil
}

type winControl struct {
	dir    string
	limit  int64
	runner procrun.Runner
}

func (c *winControl) Directory() string { return c.dir }
func (c *winControl) LimitBytes() int64 { return c.limit }

func (c *winControl) Release() error {
	h, err := c.runner.Run(context.Background(), procrun.RunSpec{
		Path: "fsutil",
		Args: []string{"quota", "disable", c.dir},
	})
	if err != nil {
		return cerr.Wrap(err, cerr.KindQuota, "run fsutil quota disable")
	}
	if code := h.Wait(); code != 0 {
		return cerr.Newf(cerr.KindQuota, "fsutil quota disable exited %d", code)
	}
	return nil
}
