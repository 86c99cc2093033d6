package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1 // span start
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd // span end
	// KindPoint represents an instant event.
	KindPoint     // instant event
	KindHeartbeat // periodic liveness signal
	KindFault     // fault or deadlock, emitted at every level above off
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	case KindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeKernel covers boot, run and halt of a kernel instance.
	ScopeKernel Scope = iota + 1 // kernel lifecycle (highest level)
	// ScopeSync covers condition, alarm and communicator operations.
	ScopeSync // synchronization primitives
	// ScopeThread covers fork, ready, block, switch and finish.
	ScopeThread // scheduler decisions (more detailed)
	ScopeTick   // timer interrupts (most detailed)
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeKernel:
		return "kernel"
	case ScopeSync:
		return "sync"
	case ScopeThread:
		return "thread"
	case ScopeTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	Tick     uint64            // simulated machine time
	Thread   string            // kernel thread that was running, if any
	Name     string            // e.g., "fork", "cond.sleep", "alarm.fire"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
