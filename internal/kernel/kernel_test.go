package kernel

import (
	"context"
	"errors"
	"testing"

	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/trace"
)

func TestBootRunsThreadsToCompletion(t *testing.T) {
	k, err := Boot(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	lock := k.NewLock()
	cond := k.NewCondition(lock)
	c := k.NewCommunicator()
	var heard int
	ready := false

	k.Fork("speaker", func() {
		k.Alarm().WaitUntil(700)
		c.Speak(42)
	})
	k.Fork("listener", func() {
		heard = c.Listen()
		lock.Acquire()
		ready = true
		cond.Wake()
		lock.Release()
	})
	k.Fork("watcher", func() {
		lock.Acquire()
		for !ready {
			cond.Sleep()
		}
		lock.Release()
	})

	rep, err := k.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if heard != 42 {
		t.Fatalf("listener heard %d", heard)
	}
	if rep.Stats.TotalTicks < 700 {
		t.Fatalf("clock did not pass the alarm deadline: %+v", rep.Stats)
	}
	if rep.Stats.TimerInterrupts == 0 || rep.Stats.ContextSwitches == 0 {
		t.Fatalf("expected interrupts and switches: %+v", rep.Stats)
	}
}

func TestBootUsesDefaults(t *testing.T) {
	k, err := Boot(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	cfg := k.Machine().Config()
	if cfg.TimerPeriod != machine.DefaultTimerPeriod || cfg.KernelTick != machine.DefaultKernelTick {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !k.Machine().Timer().HasHandler() {
		t.Fatalf("alarm not bound to the timer")
	}
}

func TestRunReportsFaultWithStats(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)
	k, err := Boot(ctx, Config{})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	lock := k.NewLock()
	k.Fork("sloppy", func() { lock.Release() })

	rep, err := k.Run()
	if !errors.Is(err, kthread.ErrPrecondition) {
		t.Fatalf("expected precondition fault, got %v", err)
	}
	var fault *kthread.Fault
	if !errors.As(err, &fault) || fault.Thread != "sloppy" {
		t.Fatalf("expected fault in sloppy, got %v", err)
	}
	if rep.Stats.TotalTicks == 0 {
		t.Fatalf("report missing stats")
	}
	faults := 0
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindFault {
			faults++
		}
	}
	if faults != 1 {
		t.Fatalf("expected one fault event at error level, got %d", faults)
	}
}
