// Package selftest holds named scenarios that boot a fresh kernel, exercise
// one primitive and verify its guarantees from the outcome and the trace.
package selftest

import (
	"context"
	"errors"
	"fmt"

	"nachos/internal/kernel"
	"nachos/internal/kthread"
	"nachos/internal/trace"
)

// ErrUnknownScenario is returned for a scenario name that is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

var errProbeOverflow = errors.New("trace probe overflowed; run is too long to verify")

// probeCapacity bounds the events a scenario may emit at debug level.
const probeCapacity = 1 << 14

// verifier checks the result of Kernel.Run against what the scenario expects.
// events holds every trace event of the run in order.
type verifier func(runErr error, events []trace.Event) error

// Scenario is a registered self test.
type Scenario struct {
	Name        string
	Description string
	setup       func(k *kernel.Kernel) verifier
}

// Result is the outcome of running one scenario.
type Result struct {
	Scenario string
	Config   kernel.Config
	Report   kernel.Report
	Events   []trace.Event
	Err      error
}

// Passed reports whether the scenario held.
func (r Result) Passed() bool { return r.Err == nil }

// Outcome returns "pass" or "fail".
func (r Result) Outcome() string {
	if r.Passed() {
		return "pass"
	}
	return "fail"
}

var registry []Scenario

func register(name, desc string, setup func(k *kernel.Kernel) verifier) {
	registry = append(registry, Scenario{Name: name, Description: desc, setup: setup})
}

// Names returns the registered scenario names in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, sc := range registry {
		names[i] = sc.Name
	}
	return names
}

// Scenarios returns every registered scenario.
func Scenarios() []Scenario {
	return append([]Scenario(nil), registry...)
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, sc := range registry {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}

// Run boots a kernel with cfg, runs the named scenario on it and verifies it.
// The tracer in ctx receives the run's events alongside the internal probe.
func Run(ctx context.Context, name string, cfg kernel.Config) Result {
	res := Result{Scenario: name, Config: cfg}
	sc, ok := Lookup(name)
	if !ok {
		res.Err = fmt.Errorf("%w: %q", ErrUnknownScenario, name)
		return res
	}

	probe := trace.NewRingTracer(probeCapacity, trace.LevelDebug)
	tracer := trace.Fanout(trace.FromContext(ctx), probe)
	k, err := kernel.Boot(trace.WithTracer(ctx, tracer), cfg)
	if err != nil {
		res.Err = err
		return res
	}

	check := sc.setup(k)
	rep, runErr := k.Run()
	res.Report = rep
	res.Events = probe.Snapshot()
	if probe.Dropped() > 0 {
		res.Err = fmt.Errorf("%s: %w", name, errProbeOverflow)
		return res
	}
	if err := check(runErr, res.Events); err != nil {
		res.Err = fmt.Errorf("%s: %w", name, err)
	}
	return res
}

// RunAll runs every registered scenario with cfg, stopping early if ctx is done.
func RunAll(ctx context.Context, cfg kernel.Config) []Result {
	results := make([]Result, 0, len(registry))
	for _, sc := range registry {
		if ctx.Err() != nil {
			break
		}
		results = append(results, Run(ctx, sc.Name, cfg))
	}
	return results
}

// spinLimit bounds waitFor loops; hitting it means the awaited state can never arrive.
const spinLimit = 1 << 16

// waitFor yields until cond holds. It must run inside a kernel thread.
func waitFor(k *kernel.Kernel, what string, cond func() bool) {
	for spins := 0; !cond(); spins++ {
		kthread.Assert(spins < spinLimit, "selftest.wait", "gave up waiting for %s", what)
		k.Scheduler().Yield()
	}
}

// clean is the verifier tail for scenarios that must run to completion.
func clean(runErr error) error {
	if runErr != nil {
		return fmt.Errorf("run did not complete: %w", runErr)
	}
	return nil
}
