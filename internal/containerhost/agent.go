// Package containerhost implements the ContainerHostService capability
// (§6): a per-container supervisor process that a Container Host Client
// talks to over internal/hostproto, and the client-side proxy used by
// internal/constrained.
package containerhost

import (
	"context"
	"log"
	"net"
	"os"
	"sync"

	"keep/internal/cerr"
	"keep/internal/hostproto"
	"keep/internal/procrun"
)

// Agent runs inside a container's job object/user session, accepting one
// process-run request per connection and executing it with a
// procrun.Runner.
type Agent struct {
	address  string
	listener net.Listener
	runner   procrun.Runner
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAgent binds the agent's listener at address without starting to serve
// yet.
func NewAgent(address string, runner procrun.Runner, logger *log.Logger) (*Agent, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "[containerhost] ", log.LstdFlags|log.Lmsgprefix)
	}

	l, err := listen(address)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "listen on "+address)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{address: address, listener: l, runner: runner, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Serve accepts connections until Shutdown is called, spawning a goroutine
// per connection.
func (a *Agent) Serve() error {
	a.logger.Printf("serving on %s", a.address)
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return nil
			default:
				return cerr.Wrap(err, cerr.KindHostUnavailable, "accept")
			}
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleConn(conn)
		}()
	}
}

func (a *Agent) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := hostproto.ReadRunRequest(conn)
	if err != nil {
		a.logger.Printf("read run request: %v", err)
		return
	}

	runCtx, cancelRun := context.WithCancel(a.ctx)
	defer cancelRun()

	// A StreamCancel frame read on the same connection aborts the in-flight
	// run.
	go func() {
		f, err := hostproto.ReadFrame(conn)
		if err == nil && f.Type == hostproto.StreamCancel {
			cancelRun()
		}
	}()

	h, err := a.runner.Run(runCtx, procrun.RunSpec{
		Path: req.Path,
		Args: req.Args,
		Dir:  req.Dir,
		Env:  req.Env,
		OnStdout: func(line []byte) {
			hostproto.WriteFrame(conn, hostproto.Frame{Type: hostproto.StreamStdout, Payload: line})
		},
		OnStderr: func(line []byte) {
			hostproto.WriteFrame(conn, hostproto.Frame{Type: hostproto.StreamStderr, Payload: line})
		},
	})
	if err != nil {
		a.logger.Printf("run %s: %v", req.Path, err)
		hostproto.WriteExitCode(conn, 1)
		return
	}

	code := h.Wait()
	hostproto.WriteExitCode(conn, code)
}

// Shutdown stops accepting new connections and waits for in-flight ones to
// drain.
func (a *Agent) Shutdown() error {
	a.cancel()
	err := a.listener.Close()
	a.wg.Wait()
	return err
}
