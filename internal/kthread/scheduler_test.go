package kthread

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"nachos/internal/machine"
)

// quietMachine has a timer period long enough that no test here is preempted.
func quietMachine() *machine.Machine {
	return machine.New(machine.Config{TimerPeriod: 1 << 30}, nil)
}

func TestYieldAlternatesFIFO(t *testing.T) {
	s := NewScheduler(quietMachine(), Config{})
	var order []string
	body := func(name string) func() {
		return func() {
			for range 3 {
				order = append(order, name)
				s.Yield()
			}
		}
	}
	s.Fork("a", body("a"))
	s.Fork("b", body("b"))
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "a", "b", "a", "b"}
	if !slices.Equal(order, want) {
		t.Fatalf("order mismatch: want %v, got %v", want, order)
	}
	for _, th := range s.Threads() {
		if th.Status() != StatusFinished {
			t.Fatalf("%s not finished: %s", th, th.Status())
		}
	}
}

func TestJoinWaitsForChild(t *testing.T) {
	s := NewScheduler(quietMachine(), Config{})
	var order []string
	s.Fork("parent", func() {
		child := s.Fork("child", func() {
			s.Yield()
			order = append(order, "child")
		})
		s.Join(child)
		order = append(order, "parent")
		s.Join(child) // already finished: returns at once
	})
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(order, []string{"child", "parent"}) {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestRunReportsDeadlock(t *testing.T) {
	m := quietMachine()
	s := NewScheduler(m, Config{})
	s.Fork("stuck", func() {
		m.Interrupt().Disable()
		s.Sleep()
		t.Errorf("stuck thread must never resume")
	})
	s.Fork("fine", func() {})
	err := s.Run()
	if !errors.Is(err, ErrDeadlock) {
		t.Fatalf("expected ErrDeadlock, got %v", err)
	}
	var dl *DeadlockError
	if !errors.As(err, &dl) {
		t.Fatalf("expected *DeadlockError, got %T", err)
	}
	if !slices.Equal(dl.Blocked, []string{"stuck (#1)"}) {
		t.Fatalf("unexpected blocked list: %v", dl.Blocked)
	}
}

func TestSleepWithInterruptsEnabledFaults(t *testing.T) {
	s := NewScheduler(quietMachine(), Config{})
	s.Fork("bad", func() {
		s.Sleep()
	})
	err := s.Run()
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *Fault, got %T", err)
	}
	if f.Thread != "bad" || f.ID != 1 {
		t.Fatalf("fault attributed to wrong thread: %+v", f)
	}
	if !strings.Contains(err.Error(), "interrupts must be disabled") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestReadyTwiceFaults(t *testing.T) {
	s := NewScheduler(quietMachine(), Config{})
	var queued *Thread
	s.Fork("first", func() {
		prev := s.intr.Disable()
		s.Ready(queued)
		s.intr.Restore(prev)
	})
	queued = s.Fork("queued", func() {})
	err := s.Run()
	if !errors.Is(err, ErrPrecondition) || !strings.Contains(err.Error(), "queued (#2) is already ready") {
		t.Fatalf("expected already-ready fault, got %v", err)
	}
}

func TestFaultHaltsOtherThreads(t *testing.T) {
	s := NewScheduler(quietMachine(), Config{})
	ran := false
	s.Fork("boom", func() { panic("boom") })
	s.Fork("later", func() { ran = true })
	err := s.Run()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected fault mentioning boom, got %v", err)
	}
	if ran {
		t.Fatalf("no thread may run after a fault")
	}
}

func TestAssertPanicsWithPreconditionError(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrPrecondition) {
			t.Fatalf("expected precondition error, got %#v", r)
		}
		want := "cond.wake: precondition violated: lock not held"
		if err.Error() != want {
			t.Fatalf("panic mismatch: want %q, got %q", want, err.Error())
		}
	}()
	Assert(false, "cond.wake", "lock %s", "not held")
}

func TestFuzzSchedulingIsReproducible(t *testing.T) {
	runOnce := func(seed uint64) string {
		s := NewScheduler(quietMachine(), Config{Fuzz: true, Seed: seed})
		var sb strings.Builder
		for i := range 5 {
			name := fmt.Sprint(i)
			s.Fork(name, func() {
				for range 3 {
					sb.WriteString(name)
					s.Yield()
				}
			})
		}
		if err := s.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return sb.String()
	}

	first := runOnce(42)
	if again := runOnce(42); again != first {
		t.Fatalf("same seed produced different interleavings: %q vs %q", first, again)
	}
	distinct := map[string]struct{}{}
	for seed := uint64(1); seed <= 20; seed++ {
		distinct[runOnce(seed)] = struct{}{}
	}
	if len(distinct) < 2 {
		t.Fatalf("fuzz scheduling produced a single interleaving across 20 seeds")
	}
}

func TestPreemptionByTimerInterrupt(t *testing.T) {
	m := machine.New(machine.Config{TimerPeriod: 30, KernelTick: 10}, nil)
	s := NewScheduler(m, Config{})
	if err := m.Timer().SetInterruptHandler(m.Interrupt().YieldOnReturn); err != nil {
		t.Fatalf("SetInterruptHandler: %v", err)
	}
	var order []string
	spin := func(name string) func() {
		return func() {
			for range 4 {
				order = append(order, name)
				m.Interrupt().Disable()
				m.Interrupt().Enable()
			}
		}
	}
	s.Fork("a", spin("a"))
	s.Fork("b", spin("b"))
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 8 {
		t.Fatalf("expected 8 steps, got %v", order)
	}
	if slices.Equal(order, []string{"a", "a", "a", "a", "b", "b", "b", "b"}) {
		t.Fatalf("timer interrupts never preempted a thread: %v", order)
	}
	if m.Stats().ContextSwitches < 3 {
		t.Fatalf("expected preemptive context switches, got %d", m.Stats().ContextSwitches)
	}
}
