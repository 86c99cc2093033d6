// Package stress runs self-test scenarios across many scheduler seeds in
// parallel, each run on its own fuzz-scheduled kernel.
package stress

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"nachos/internal/kernel"
	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/observ"
	"nachos/internal/selftest"
)

// DefaultSeeds is the number of seeds per scenario when Options.Seeds is unset.
const DefaultSeeds = 16

// Options configures a stress run.
type Options struct {
	Scenarios []string // empty means every registered scenario
	Seeds     int
	FirstSeed uint64
	Jobs      int
	Machine   machine.Config // Seed is overridden per run
	Sink      ProgressSink
}

// Summary aggregates a stress run.
type Summary struct {
	Runs     int
	Failures []selftest.Result
	Timing   observ.Report
}

// RunKey names one scenario/seed pair.
func RunKey(scenario string, seed uint64) string {
	return scenario + "#" + strconv.FormatUint(seed, 10)
}

// Plan lists the scenario/seed pairs Run would execute for opts, in order.
func Plan(opts Options) ([]Event, error) {
	opts = withDefaults(opts)
	var plan []Event
	for _, name := range opts.Scenarios {
		if _, ok := selftest.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %q", selftest.ErrUnknownScenario, name)
		}
		for i := range opts.Seeds {
			plan = append(plan, Event{Scenario: name, Seed: opts.FirstSeed + uint64(i), Status: StatusQueued})
		}
	}
	return plan, nil
}

// Run executes every planned run. Scenarios are processed one after another
// so the timing report has one phase per scenario; the seeds of a scenario
// run in parallel with at most Jobs kernels at a time.
func Run(ctx context.Context, opts Options) (Summary, error) {
	opts = withDefaults(opts)
	plan, err := Plan(opts)
	if err != nil {
		return Summary{}, err
	}
	emit := func(evt Event) {
		if opts.Sink != nil {
			opts.Sink.OnEvent(evt)
		}
	}
	for _, evt := range plan {
		emit(evt)
	}

	var summary Summary
	timer := observ.NewTimer()
	for _, name := range opts.Scenarios {
		phase := timer.Begin(name)
		results, runErr := runScenario(ctx, name, opts, emit)
		failed := 0
		for _, res := range results {
			if res.Scenario == "" {
				continue
			}
			summary.Runs++
			if !res.Passed() {
				failed++
				summary.Failures = append(summary.Failures, res)
			}
		}
		timer.End(phase, len(results), failed)
		if runErr != nil {
			summary.Timing = timer.Report()
			return summary, runErr
		}
	}
	summary.Timing = timer.Report()
	return summary, nil
}

func runScenario(ctx context.Context, name string, opts Options, emit func(Event)) ([]selftest.Result, error) {
	results := make([]selftest.Result, opts.Seeds)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.Jobs, opts.Seeds))
	for i := range opts.Seeds {
		seed := opts.FirstSeed + uint64(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(Event{Scenario: name, Seed: seed, Status: StatusWorking})

			mcfg := opts.Machine
			mcfg.Seed = seed
			cfg := kernel.Config{
				Machine:   mcfg,
				Scheduler: kthread.Config{Fuzz: true, Seed: seed},
			}
			start := time.Now()
			res := selftest.Run(gctx, name, cfg)
			// Keep the trace only for failures.
			if res.Passed() {
				res.Events = nil
			}
			results[i] = res

			status := StatusDone
			if !res.Passed() {
				status = StatusError
			}
			emit(Event{Scenario: name, Seed: seed, Status: status, Err: res.Err, Elapsed: time.Since(start)})
			return nil
		})
	}
	return results, g.Wait()
}

func withDefaults(opts Options) Options {
	if len(opts.Scenarios) == 0 {
		opts.Scenarios = selftest.Names()
	}
	if opts.Seeds <= 0 {
		opts.Seeds = DefaultSeeds
	}
	if opts.FirstSeed == 0 {
		opts.FirstSeed = 1
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	return opts
}
