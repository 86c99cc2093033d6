package selftest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"nachos/internal/kernel"
	"nachos/internal/kthread"
	"nachos/internal/machine"
)

func TestNamesListsEveryScenario(t *testing.T) {
	want := []string{
		"ping-pong", "join", "alarm", "alarm-zero", "condition",
		"condition-wake-all", "communicator", "speak-first", "listen-first",
	}
	if got := Names(); !slices.Equal(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for _, name := range want {
		sc, ok := Lookup(name)
		if !ok || sc.Description == "" {
			t.Fatalf("scenario %q missing or undocumented", name)
		}
	}
}

func TestScenariosPassWithDefaults(t *testing.T) {
	for _, res := range RunAll(context.Background(), kernel.Config{}) {
		if !res.Passed() {
			t.Errorf("%s: %v", res.Scenario, res.Err)
		}
		if len(res.Events) == 0 {
			t.Errorf("%s: probe recorded nothing", res.Scenario)
		}
	}
}

func TestScenariosPassUnderFuzz(t *testing.T) {
	for seed := uint64(1); seed <= 12; seed++ {
		cfg := kernel.Config{
			Machine:   machine.Config{TimerPeriod: 40, KernelTick: 10, Randomize: true, Seed: seed},
			Scheduler: kthread.Config{Fuzz: true, Seed: seed},
		}
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			for _, res := range RunAll(context.Background(), cfg) {
				if !res.Passed() {
					t.Errorf("%s: %v", res.Scenario, res.Err)
				}
			}
		})
	}
}

func TestRunUnknownScenario(t *testing.T) {
	res := Run(context.Background(), "no-such-thing", kernel.Config{})
	if !errors.Is(res.Err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", res.Err)
	}
	if res.Outcome() != "fail" {
		t.Fatalf("unexpected outcome %q", res.Outcome())
	}
}

func TestRunAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := RunAll(ctx, kernel.Config{}); len(got) != 0 {
		t.Fatalf("expected no results after cancel, got %d", len(got))
	}
}

func TestCheckFirstInterruptFlagsLateFire(t *testing.T) {
	res := Run(context.Background(), "alarm", kernel.Config{})
	if !res.Passed() {
		t.Fatalf("alarm: %v", res.Err)
	}
	events := slices.Clone(res.Events)
	for i := range events {
		if events[i].Name == "alarm.fire" {
			events[i].Tick += 10_000
			break
		}
	}
	if err := checkFirstInterrupt(events); err == nil {
		t.Fatalf("late fire not detected")
	}
}
