package kthread

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPrecondition marks a programming error in the use of a kernel primitive,
// such as waking a condition without holding its lock.
var ErrPrecondition = errors.New("precondition violated")

// ErrDeadlock is returned by Run when live threads remain but none can ever run again.
var ErrDeadlock = errors.New("deadlock")

// PreconditionError describes a failed kernel assertion.
type PreconditionError struct {
	Op  string
	Msg string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrPrecondition, e.Msg)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// Assert panics with a *PreconditionError when cond is false. The scheduler
// turns the panic into a Fault that halts the machine.
func Assert(cond bool, op, format string, args ...any) {
	if cond {
		return
	}
	panic(&PreconditionError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Fault is returned by Run when a kernel thread panicked.
type Fault struct {
	Thread string
	ID     ThreadID
	Tick   uint64
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("thread %q (#%d) faulted at tick %d: %v", f.Thread, f.ID, f.Tick, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// DeadlockError lists the threads left blocked when the machine ran out of work.
type DeadlockError struct {
	Tick    uint64
	Blocked []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("%s at tick %d: blocked threads: %s", ErrDeadlock, e.Tick, strings.Join(e.Blocked, ", "))
}

func (e *DeadlockError) Unwrap() error { return ErrDeadlock }

func faultFromPanic(r any) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}
