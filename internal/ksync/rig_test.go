package ksync

import (
	"testing"

	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/trace"
)

type rig struct {
	t     *testing.T
	m     *machine.Machine
	s     *kthread.Scheduler
	alarm *Alarm
	ring  *trace.RingTracer
}

func newRig(t *testing.T, mcfg machine.Config, scfg kthread.Config, level trace.Level) *rig {
	t.Helper()
	ring := trace.NewRingTracer(1<<16, level)
	m := machine.New(mcfg, ring)
	s := kthread.NewScheduler(m, scfg)
	a, err := NewAlarm(m, s)
	if err != nil {
		t.Fatalf("NewAlarm: %v", err)
	}
	s.SetIdleSource(a)
	return &rig{t: t, m: m, s: s, alarm: a, ring: ring}
}

// quiet returns a rig whose timer never preempts within a test.
func quiet(t *testing.T) *rig {
	return newRig(t, machine.Config{TimerPeriod: 1 << 30}, kthread.Config{}, trace.LevelSync)
}

// choppy returns a rig with frequent preemption and seeded random scheduling.
func choppy(t *testing.T, seed uint64) *rig {
	return newRig(t,
		machine.Config{TimerPeriod: 30, KernelTick: 10, Randomize: true, Seed: seed},
		kthread.Config{Fuzz: true, Seed: seed},
		trace.LevelSync)
}

func (r *rig) events(name string) []trace.Event {
	if d := r.ring.Dropped(); d > 0 {
		r.t.Fatalf("trace ring dropped %d events", d)
	}
	return r.ring.Named(name)
}
