// Package kernel boots a simulated machine with its scheduler and the single
// Alarm bound to the machine's timer, and runs kernel threads on it.
package kernel

import (
	"context"
	"fmt"
	"time"

	"nachos/internal/ksync"
	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/trace"
)

// Config bundles hardware and scheduling settings for one boot.
type Config struct {
	Machine   machine.Config
	Scheduler kthread.Config
}

// Report summarizes a finished run.
type Report struct {
	Stats   machine.Stats
	Elapsed time.Duration
}

// Kernel owns one machine, its scheduler and its Alarm. A Kernel runs once.
type Kernel struct {
	cfg    Config
	m      *machine.Machine
	s      *kthread.Scheduler
	alarm  *ksync.Alarm
	tracer trace.Tracer
}

// Boot builds a kernel. The tracer is taken from ctx.
func Boot(ctx context.Context, cfg Config) (*Kernel, error) {
	tracer := trace.FromContext(ctx)
	m := machine.New(cfg.Machine, tracer)
	s := kthread.NewScheduler(m, cfg.Scheduler)
	alarm, err := ksync.NewAlarm(m, s)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	s.SetIdleSource(alarm)

	k := &Kernel{cfg: cfg, m: m, s: s, alarm: alarm, tracer: tracer}
	trace.Point(tracer, trace.ScopeKernel, 0, "", "boot", fmt.Sprintf("period=%d fuzz=%t seed=%d",
		m.Config().TimerPeriod, cfg.Scheduler.Fuzz, cfg.Scheduler.Seed))
	return k, nil
}

// Machine returns the simulated hardware.
func (k *Kernel) Machine() *machine.Machine { return k.m }

// Scheduler returns the thread scheduler.
func (k *Kernel) Scheduler() *kthread.Scheduler { return k.s }

// Alarm returns the kernel's only Alarm.
func (k *Kernel) Alarm() *ksync.Alarm { return k.alarm }

// Fork creates a ready kernel thread.
func (k *Kernel) Fork(name string, fn func()) *kthread.Thread { return k.s.Fork(name, fn) }

// NewLock returns a lock scheduled by this kernel.
func (k *Kernel) NewLock() *kthread.Lock { return kthread.NewLock(k.s) }

// NewCondition returns a condition variable bound to lock.
func (k *Kernel) NewCondition(lock *kthread.Lock) *ksync.Condition { return ksync.NewCondition(lock) }

// NewCommunicator returns a Communicator scheduled by this kernel.
func (k *Kernel) NewCommunicator() *ksync.Communicator { return ksync.NewCommunicator(k.s) }

// Run drives the machine until every thread finishes, a thread faults or
// the remaining threads deadlock. The report is filled in every case.
func (k *Kernel) Run() (Report, error) {
	start := time.Now()
	err := k.s.Run()
	rep := Report{Stats: k.m.Stats(), Elapsed: time.Since(start)}
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	trace.Point(k.tracer, trace.ScopeKernel, rep.Stats.TotalTicks, "", "halt", outcome)
	return rep, err
}
