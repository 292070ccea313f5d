package containerhost

import (
	"context"
	"net"
	"sync"

	"keep/internal/cerr"
	"keep/internal/hostproto"
	"keep/internal/procrun"
)

// Client dials the per-container Agent to run one process per connection.
type Client struct {
	address string
}

// NewClient constructs a Client targeting the agent listening at address.
func NewClient(address string) *Client {
	return &Client{address: address}
}

// Session is a single in-flight or completed remote process run.
type Session struct {
	conn     net.Conn
	mu       sync.Mutex
	exitCode int
	done     chan struct{}
}

// Wait blocks until the remote process has exited and returns its exit
// code.
func (s *Session) Wait() int {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Kill sends a StreamCancel frame, asking the agent to abort the run.
func (s *Session) Kill() error {
	return hostproto.WriteFrame(s.conn, hostproto.Frame{Type: hostproto.StreamCancel})
}

// RunProcess dials the agent, submits spec, and streams output back to the
// spec's callbacks as it arrives.
func (c *Client) RunProcess(ctx context.Context, spec procrun.RunSpec) (*Session, error) {
	conn, err := dial(ctx, c.address)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "dial container host")
	}

	req := &hostproto.RunRequest{Path: spec.Path, Args: spec.Args, Dir: spec.Dir, Env: spec.Env, Buffered: spec.Buffered}
	if err := hostproto.WriteRunRequest(conn, req); err != nil {
		conn.Close()
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "write run request")
	}

	s := &Session{conn: conn, done: make(chan struct{})}

	go func() {
		defer conn.Close()
		for {
			f, err := hostproto.ReadFrame(conn)
			if err != nil {
				s.mu.Lock()
				s.exitCode = 1
				s.mu.Unlock()
				close(s.done)
				return
			}
			switch f.Type {
			case hostproto.StreamStdout:
				if spec.OnStdout != nil {
					spec.OnStdout(f.Payload)
				}
			case hostproto.StreamStderr:
				if spec.OnStderr != nil {
					spec.OnStderr(f.Payload)
				}
			case hostproto.StreamExit:
				code := 0
				if len(f.Payload) > 0 {
					code = int(f.Payload[0])
				}
				s.mu.Lock()
				s.exitCode = code
				s.mu.Unlock()
				close(s.done)
				if spec.OnExit != nil {
					spec.OnExit(code)
				}
				return
			}
		}
	}()

	return s, nil
}
