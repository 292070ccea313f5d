// Package container defines the Container entity (§3): the aggregate of
// everything one provisioned container owns, plus its destroy/run-command
// operations.
package container

import (
	"context"
	"strings"
	"sync"

	"keep/internal/cdir"
	"keep/internal/cerr"
	"keep/internal/containerhost"
	"keep/internal/cuser"
	"keep/internal/envblock"
	"keep/internal/jobobject"
	"keep/internal/procrun"
	"keep/internal/propstore"
	"keep/internal/quota"
)

// Runner is the process-running contract a Container depends on: either
// internal/procrun.Local (used directly by a Restored, degraded container
// with no live host agent) or internal/constrained.Runner (used by a
// normally created container). Both implement procrun.Runner plus Dispose.
type Runner interface {
	procrun.Runner
	Dispose() error
}

// State is the Container's lifecycle state, monotonic once Destroying.
type State int

const (
	StateActive State = iota
	StateDestroying
	StateDestroyed
)

// Container aggregates one container's owned subsystems.
type Container struct {
	ID      string
	Handle  string
	User    *cuser.Credential
	Dir     *cdir.Directory
	Job     jobobject.JobObject
	Client  *containerhost.Client
	Runner  Runner
	Quota   quota.Control

	mu    sync.Mutex
	state State
	env   []string
}

// New assembles a Container from its already-created subsystems. Called
// only by internal/containersvc once every step of §4.6 has succeeded.
func New(id, handle string, user *cuser.Credential, dir *cdir.Directory, job jobobject.JobObject, client *containerhost.Client, runner Runner, q quota.Control, env []string) *Container {
	return &Container{
		ID: id, Handle: handle, User: user, Dir: dir, Job: job,
		Client: client, Runner: runner, Quota: q, state: StateActive, env: env,
	}
}

// State reports the Container's current lifecycle state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Environment returns a copy of the container's baseline environment.
func (c *Container) Environment() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.env))
	copy(out, c.env)
	return out
}

// RunCommand executes path/args inside the container via its Runner (the
// Constrained Process Runner, or procrun.Local for a restored container),
// merging extraEnv over the container's baseline environment.
func (c *Container) RunCommand(ctx context.Context, path string, args []string, extraEnv []string) (procrun.ProcessHandle, error) {
	if c.State() != StateActive {
		return nil, cerr.New(cerr.KindHostUnavailable, "container is not active")
	}

	env := c.Environment()
	if len(extraEnv) > 0 {
		env = envblock.Merge(env, extraEnv)
	}

	return c.Runner.Run(ctx, procrun.RunSpec{Path: path, Args: args, Env: env})
}

// SetProperties merges updates into the container's persisted property map.
func (c *Container) SetProperties(updates map[string]string) error {
	privateDir, err := c.Dir.MapPrivatePath("")
	if err != nil {
		return err
	}
	return propstore.SetProperties(privateDir, updates)
}

// Properties returns the container's full persisted property map.
func (c *Container) Properties() (map[string]string, error) {
	privateDir, err := c.Dir.MapPrivatePath("")
	if err != nil {
		return nil, err
	}
	return propstore.GetAll(privateDir)
}

// Destroy tears the container down in reverse creation order: dispose the
// runner, dispose the job object, release the quota control, destroy the
// directory. Stopping the host agent and deleting the user are the
// caller's (Container Service's) responsibility, since the Container
// entity owns neither the host launcher nor a cuser.Manager reference.
func (c *Container) Destroy() error {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDestroying
	c.mu.Unlock()

	var errs []error

	if c.Runner != nil {
		if err := c.Runner.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Job != nil {
		if err := c.Job.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Quota != nil {
		if err := c.Quota.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Dir != nil {
		if err := c.Dir.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	c.state = StateDestroyed
	c.mu.Unlock()

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return cerr.Newf(cerr.KindAggregate, "container teardown: %s", strings.Join(msgs, "; "))
	}
	return nil
}
