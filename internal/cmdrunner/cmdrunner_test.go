package cmdrunner

import (
	"context"
	"errors"
	"testing"

	"keep/internal/cerr"
)

type echoCommand struct {
	args Args
}

func (c echoCommand) Execute(ctx context.Context) (Result, error) {
	return Result{ExitCode: 0, Stdout: c.args.Argv[0]}, nil
}

func TestRunAsyncDispatchesToRegisteredVerb(t *testing.T) {
	r := New()
	var seen Args
	r.Register("echo", func(args Args) (Command, error) {
		seen = args
		return echoCommand{args: args}, nil
	})

	got, err := r.RunAsync(context.Background(), "echo", Args{Argv: []string{"hello"}})
	if err != nil {
		t.Fatalf("RunAsync: %v", err)
	}
	if got.Stdout != "hello" || got.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(seen.Argv) != 1 || seen.Argv[0] != "hello" {
		t.Fatalf("factory did not receive the exact args object: %+v", seen)
	}
}

func TestRunAsyncUnregisteredVerbFails(t *testing.T) {
	r := New()
	_, err := r.RunAsync(context.Background(), "nope", Args{})
	if cerr.KindOf(err) != cerr.KindInvalidOperation {
		t.Fatalf("expected KindInvalidOperation, got %v", err)
	}
}

func TestRunAsyncVerbsAreCaseSensitive(t *testing.T) {
	r := New()
	r.Register("Echo", func(args Args) (Command, error) { return echoCommand{args: args}, nil })

	_, err := r.RunAsync(context.Background(), "echo", Args{Argv: []string{"x"}})
	if cerr.KindOf(err) != cerr.KindInvalidOperation {
		t.Fatalf("expected lowercase verb to miss a capitalized registration, got %v", err)
	}
}

func TestRunAsyncRegisterReplacesExistingFactory(t *testing.T) {
	r := New()
	r.Register("v", func(args Args) (Command, error) { return echoCommand{args: Args{Argv: []string{"first"}}}, nil })
	r.Register("v", func(args Args) (Command, error) { return echoCommand{args: Args{Argv: []string{"second"}}}, nil })

	got, err := r.RunAsync(context.Background(), "v", Args{})
	if err != nil {
		t.Fatalf("RunAsync: %v", err)
	}
	if got.Stdout != "second" {
		t.Fatalf("expected the replaced factory to run, got %q", got.Stdout)
	}
}

type failingCommand struct{}

func (failingCommand) Execute(ctx context.Context) (Result, error) {
	return Result{}, errors.New("boom")
}

func TestRunAsyncPropagatesCommandFailure(t *testing.T) {
	r := New()
	r.Register("fail", func(args Args) (Command, error) { return failingCommand{}, nil })

	_, err := r.RunAsync(context.Background(), "fail", Args{})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected the command's own error to propagate, got %v", err)
	}
}
