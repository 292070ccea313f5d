// Package cerr defines the kinded error model shared across the container
// provisioning engine. Every error a caller-visible operation can raise
// carries a Kind so callers can branch on failure category without parsing
// strings.
package cerr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure into one of the categories the provisioning
// engine surfaces to its caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInvalidOperation
	KindInvalidPath
	KindResourceExists
	KindResourceMissing
	KindHostUnavailable
	KindQuota
	KindPortAllocation
	KindAggregate
	KindUnimplemented
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindInvalidPath:
		return "InvalidPath"
	case KindResourceExists:
		return "ResourceExists"
	case KindResourceMissing:
		return "ResourceMissing"
	case KindHostUnavailable:
		return "HostUnavailable"
	case KindQuota:
		return "Quota"
	case KindPortAllocation:
		return "PortAllocation"
	case KindAggregate:
		return "Aggregate"
	case KindUnimplemented:
		return "Unimplemented"
	default:
		return "Unknown"
	}
}

// kindedError wraps an underlying cause with a Kind and a message.
type kindedError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *kindedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *kindedError) Unwrap() error { return e.cause }

// Cause supports github.com/pkg/errors-style cause walking.
func (e *kindedError) Cause() error { return e.cause }

// New constructs a new kinded error with no underlying cause.
func New(kind Kind, msg string) error {
	return &kindedError{kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &kindedError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a Kind, preserving it as the cause
// and attaching a stack trace via pkg/errors so the original call site
// survives in logs.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, msg: msg, cause: errors.WithStack(err)}
}

// Is reports whether the Kind of err, as KindOf finds it (the outermost
// kinded error in the chain), is kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the Kind of err, walking the cause chain. Returns
// KindUnknown if err is nil or carries no Kind.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindedError); ok {
			return ke.kind
		}
		cause := stderrors.Unwrap(err)
		if cause == nil {
			return KindUnknown
		}
		err = cause
	}
	return KindUnknown
}

// AggregateError carries a triggering error together with zero or more
// errors raised while attempting to compensate for it (see internal/undo).
type AggregateError struct {
	Trigger error
	Undo    []error
}

func (a *AggregateError) Error() string {
	s := fmt.Sprintf("Aggregate: trigger: %v", a.Trigger)
	for i, e := range a.Undo {
		s += fmt.Sprintf("; undo[%d]: %v", i, e)
	}
	return s
}

func (a *AggregateError) Unwrap() error { return a.Trigger }

// NewAggregateError builds an AggregateError. If undoErrs is empty the
// trigger error is returned unwrapped, since there is nothing to aggregate.
func NewAggregateError(trigger error, undoErrs []error) error {
	if len(undoErrs) == 0 {
		return trigger
	}
	return &AggregateError{Trigger: trigger, Undo: undoErrs}
}
