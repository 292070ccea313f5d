// Package quota implements the QuotaManager capability (§6): configuring a
// per-directory disk usage limit for a container's volume. volume_resolution
// is none: callers pass the container directory's root verbatim (see
// internal/cdir.Directory.Volume) rather than this package resolving it to
// an underlying disk volume.
package quota

import (
	"github.com/docker/go-units"

	"keep/internal/cerr"
)

// Control represents one active quota attached to a directory.
type Control interface {
	Directory() string
	LimitBytes() int64
	Release() error
}

// Manager is the capability interface the Container Service depends on.
type Manager interface {
	CreateQuotaControl(directory string, limit string) (Control, error)
}

// ParseLimit turns an operator-supplied human size ("10GB") into bytes,
// using github.com/docker/go-units the way the wider moby/docker ecosystem
// parses quota/size configuration.
func ParseLimit(human string) (int64, error) {
	n, err := units.FromHumanSize(human)
	if err != nil {
		return 0, cerr.Wrap(err, cerr.KindInvalidInput, "parse quota size "+human)
	}
	return n, nil
}

// FormatLimit renders bytes back to a human-readable size for logging.
func FormatLimit(bytes int64) string {
	return units.HumanSize(float64(bytes))
}

// FakeManager is an in-memory Manager used by tests and as the default on
// non-Windows hosts.
type FakeManager struct{}

// NewFake constructs a FakeManager.
func NewFake() *FakeManager { return &FakeManager{} }

func (m *FakeManager) CreateQuotaControl(directory string, limit string) (Control, error) {
	bytes, err := ParseLimit(limit)
	if err != nil {
		return nil, err
	}
	return &fakeControl{dir: directory, limit: bytes}, nil
}

type fakeControl struct {
	dir   string
	limit int64
}

func (c *fakeControl) Directory() string { return c.dir }
func (c *fakeControl) LimitBytes() int64 { return c.limit }
func (c *fakeControl) Release() error    { return nil }
