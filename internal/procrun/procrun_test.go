package procrun

import (
	"context"
	"sync"
	"testing"
)

func TestLocalRunCapturesOutputAndExitCode(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	r := NewLocal()
	h, err := r.Run(context.Background(), RunSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo hello; exit 3"},
		OnStdout: func(line []byte) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, string(line))
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	code := h.Wait()
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0] != "hello\n" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestLocalStopAllUnimplemented(t *testing.T) {
	r := NewLocal()
	if err := r.StopAll(true); err == nil {
		t.Fatalf("expected StopAll to report Unimplemented")
	}
}

func TestLocalFindByID(t *testing.T) {
	r := NewLocal()
	h, err := r.Run(context.Background(), RunSpec{Path: "/bin/true"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	h.Wait()

	id := h.(*Handle).ID
	found, ok := r.FindByID(id)
	if !ok || found != h {
		t.Fatalf("FindByID(%d) = %v, %v", id, found, ok)
	}
	if _, ok := r.FindByID(id + 1000); ok {
		t.Fatalf("FindByID found a handle that shouldn't exist")
	}
}
