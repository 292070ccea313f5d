// Package constrained implements the Constrained Process Runner (§4.8):
// the same procrun.Runner contract as internal/procrun.Local, but every run
// is routed through a Container Host Client instead of exec.CommandContext.
package constrained

import (
	"context"
	"sync"

	"keep/internal/cerr"
	"keep/internal/containerhost"
	"keep/internal/procrun"
)

// Runner dispatches RunSpecs to a containerhost.Client.
type Runner struct {
	client *containerhost.Client

	mu       sync.Mutex
	sessions map[int]*containerhost.Session
	nextID   int
}

// New constructs a Runner bound to client.
func New(client *containerhost.Client) *Runner {
	return &Runner{client: client, sessions: make(map[int]*containerhost.Session)}
}

func (r *Runner) Run(ctx context.Context, spec procrun.RunSpec) (procrun.ProcessHandle, error) {
	sess, err := r.client.RunProcess(ctx, spec)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "run via container host client")
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.sessions[id] = sess
	r.mu.Unlock()

	return &handle{id: id, session: sess}, nil
}

// StopAll is, like internal/procrun.Local, intentionally unimplemented.
func (r *Runner) StopAll(kill bool) error {
	return cerr.New(cerr.KindUnimplemented, "StopAll is not implemented")
}

// FindByID looks up a previously returned handle by its id. Implemented for
// the same reason as internal/procrun.Local.FindByID: sessions are already
// tracked by id, so the lookup costs nothing extra to expose.
func (r *Runner) FindByID(id int) (procrun.ProcessHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return &handle{id: id, session: sess}, true
}

// Dispose terminates every tracked session, used when a container is
// destroyed or its constrained runner is torn down.
func (r *Runner) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, sess := range r.sessions {
		if err := sess.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sessions = make(map[int]*containerhost.Session)
	if len(errs) > 0 {
		return cerr.Wrap(errs[0], cerr.KindHostUnavailable, "dispose constrained runner sessions")
	}
	return nil
}

type handle struct {
	id      int
	session *containerhost.Session
}

func (h *handle) Wait() int   { return h.session.Wait() }
func (h *handle) Kill() error { return h.session.Kill() }
