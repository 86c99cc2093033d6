// Package trace records what the simulated machine, the scheduler and the
// synchronization primitives do, so an interleaving that lost a wakeup or
// paired the wrong speaker can be read back tick by tick.
//
// Every event carries the machine tick and the running kernel thread. Point
// emits instant events, Begin/End bracket a kernel run, and Fault reports
// deadlocks and precondition failures at any enabled level.
//
// Tracers:
//
//   - Nop discards everything
//   - StreamTracer writes text or NDJSON as events arrive
//   - RingTracer keeps the newest events; self tests verify runs from its snapshot
//   - Fanout combines tracers, each filtering at its own level
//
// Levels, from quiet to verbose: off, error (faults only), kernel (boot, run,
// halt), sync (primitive operations), thread (scheduler decisions) and debug
// (timer interrupts too).
//
// A kernel takes its tracer from the context it boots with:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	k, err := kernel.Boot(ctx, cfg)
//
// From the CLI:
//
//	nachos run communicator --trace=- --trace-level=sync
package trace
