package trace

import "time"

// Point emits an instant event stamped with the machine tick and the running thread.
// It is a no-op when t is nil, disabled, or filtered out by level.
func Point(t Tracer, scope Scope, tick uint64, thread, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Tick:   tick,
		Thread: thread,
		Name:   name,
		Detail: detail,
	})
}

// Fault emits an event that bypasses level filtering for anything above LevelOff.
// Faults and deadlocks always reach an enabled tracer.
func Fault(t Tracer, tick uint64, thread, name, detail string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindFault,
		Scope:  ScopeKernel,
		Tick:   tick,
		Thread: thread,
		Name:   name,
		Detail: detail,
	})
}
