package kthread

import "fmt"

// ThreadID identifies a kernel thread.
type ThreadID uint64

// Status describes a thread's scheduling state.
type Status uint8

const (
	StatusNew Status = iota
	StatusReady
	StatusRunning
	StatusBlocked
	StatusFinished
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusBlocked:
		return "blocked"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Thread is a kernel thread. Its state is owned by the scheduler; the
// synchronization primitives only ever block it or mark it ready.
type Thread struct {
	id      ThreadID
	name    string
	status  Status
	fn      func()
	wake    chan struct{}
	joiners ThreadQueue
}

// ID returns the thread's identifier.
func (t *Thread) ID() ThreadID {
	if t == nil {
		return 0
	}
	return t.id
}

// Name returns the thread's name.
func (t *Thread) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Status returns the thread's scheduling state.
func (t *Thread) Status() Status {
	if t == nil {
		return StatusFinished
	}
	return t.status
}

func (t *Thread) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (#%d)", t.name, t.id)
}
