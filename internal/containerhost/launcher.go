package containerhost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"keep/internal/cerr"
	"keep/internal/jobobject"
	"keep/internal/procrun"
)

// HostLauncher is the ContainerHostService capability interface (§6) the
// Container Service depends on. Both Launcher (production, spawns a real
// subprocess) and InProcessLauncher (test/dev default) satisfy it.
type HostLauncher interface {
	StartHost(ctx context.Context, id, dir string, job jobobject.JobObject, cred *procrun.Credential) (*Client, error)
	StopHost(id string) error
}

// Launcher implements the ContainerHostService capability (§6):
// start_host(id, directory, job_object, credentials) -> client. It is the
// one piece of the engine that ties Process Runner, Job Object, and the
// wire protocol together: the host agent is itself just another process,
// launched under the container's credential and immediately folded into
// its job object.
type Launcher struct {
	runner      procrun.Runner
	binaryPath  string
	socketDir   string
	dialTimeout time.Duration
}

// NewLauncher constructs a production Launcher that spawns binaryPath (see
// cmd/containerhost) as a subprocess per container.
func NewLauncher(runner procrun.Runner, binaryPath, socketDir string) *Launcher {
	return &Launcher{runner: runner, binaryPath: binaryPath, socketDir: socketDir, dialTimeout: 5 * time.Second}
}

// StartHost launches the container host agent for id under cred, bound to
// job, and returns a Client connected to it.
func (l *Launcher) StartHost(ctx context.Context, id, dir string, job jobobject.JobObject, cred *procrun.Credential) (*Client, error) {
	address := l.addressFor(id)

	h, err := l.runner.Run(ctx, procrun.RunSpec{
		Path:       l.binaryPath,
		Args:       []string{"-id", id, "-address", address},
		Dir:        dir,
		Credential: cred,
	})
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "start container host agent")
	}

	if lh, ok := h.(*procrun.Handle); ok && job != nil {
		if err := job.Assign(lh.Pid()); err != nil {
			return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "assign host agent to job object")
		}
	}

	return l.dial(ctx, address)
}

func (l *Launcher) dial(ctx context.Context, address string) (*Client, error) {
	deadline := time.Now().Add(l.dialTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := dial(ctx, address)
		if err == nil {
			conn.Close()
			return NewClient(address), nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, cerr.Wrap(lastErr, cerr.KindHostUnavailable, "container host agent did not become reachable")
}

func (l *Launcher) addressFor(id string) string {
	return filepath.Join(l.socketDir, fmt.Sprintf("%s.sock", id))
}

// StopHost is a no-op for the production Launcher: the host agent subprocess
// is a member of the container's job object, so disposing the job object
// (which internal/containersvc does immediately after calling StopHost)
// terminates it. There is nothing left for Launcher itself to tear down.
func (l *Launcher) StopHost(id string) error {
	return nil
}

// InProcessLauncher starts an Agent directly, in a goroutine, without
// spawning a subprocess. It is the default used by internal/containersvc's
// test suite and by development hosts without a built cmd/containerhost
// binary.
type InProcessLauncher struct {
	socketDir string
	agents    map[string]*Agent
}

// NewInProcessLauncher constructs an InProcessLauncher rooted at socketDir.
func NewInProcessLauncher(socketDir string) *InProcessLauncher {
	return &InProcessLauncher{socketDir: socketDir, agents: make(map[string]*Agent)}
}

func (l *InProcessLauncher) StartHost(ctx context.Context, id, dir string, job jobobject.JobObject, cred *procrun.Credential) (*Client, error) {
	address := filepath.Join(l.socketDir, fmt.Sprintf("%s.sock", id))
	os.MkdirAll(l.socketDir, 0o750)

	agent, err := NewAgent(address, procrun.NewLocal(), nil)
	if err != nil {
		return nil, err
	}
	l.agents[id] = agent

	go agent.Serve()

	return NewClient(address), nil
}

// StopHost shuts down the in-process agent for id, if any.
func (l *InProcessLauncher) StopHost(id string) error {
	agent, ok := l.agents[id]
	if !ok {
		return nil
	}
	delete(l.agents, id)
	return agent.Shutdown()
}
