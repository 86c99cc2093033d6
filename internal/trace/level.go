package trace

import "fmt"

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff    Level = iota // no tracing
	LevelError               // only emit on faults and deadlocks
	LevelKernel              // kernel boot/run/halt
	LevelSync                // primitive operations
	LevelThread              // scheduler decisions
	LevelDebug               // everything including timer ticks
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelKernel:
		return "kernel"
	case LevelSync:
		return "sync"
	case LevelThread:
		return "thread"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off", "OFF":
		return LevelOff, nil
	case "error", "ERROR":
		return LevelError, nil
	case "kernel", "KERNEL":
		return LevelKernel, nil
	case "sync", "SYNC":
		return LevelSync, nil
	case "thread", "THREAD":
		return LevelThread, nil
	case "debug", "DEBUG":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|kernel|sync|thread|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return false // error events always emitted via fault path
	case LevelKernel:
		return scope <= ScopeKernel
	case LevelSync:
		return scope <= ScopeSync
	case LevelThread:
		return scope <= ScopeThread
	case LevelDebug:
		return true
	}
	return false
}
