// Package machine simulates the hardware a kernel thread package runs on:
// an interrupt controller that can be disabled and restored, a periodic
// timer, and a tick clock that advances as the kernel runs.
//
// There is exactly one logical processor. Nothing in this package blocks;
// the only suspension point is the optional wall-clock pacing of idle time
// in TimerModeReal.
package machine

import (
	"time"

	"nachos/internal/trace"
)

const (
	// DefaultTimerPeriod is the approximate number of ticks between timer interrupts.
	DefaultTimerPeriod uint64 = 500
	// DefaultKernelTick is how far the clock advances each time interrupts are re-enabled.
	DefaultKernelTick uint64 = 10
)

// Config configures the simulated hardware.
type Config struct {
	TimerPeriod  uint64        // ticks between timer interrupts
	KernelTick   uint64        // ticks charged per interrupt re-enable
	Randomize    bool          // jitter timer period
	Seed         uint64        // seed for Randomize
	Mode         TimerMode     // virtual or wall-clock paced idle time
	TickDuration time.Duration // wall time per idle tick in TimerModeReal
}

// Stats counts what the machine has done so far.
type Stats struct {
	TotalTicks      uint64 `json:"total_ticks" msgpack:"total_ticks"`
	KernelTicks     uint64 `json:"kernel_ticks" msgpack:"kernel_ticks"`
	IdleTicks       uint64 `json:"idle_ticks" msgpack:"idle_ticks"`
	TimerInterrupts uint64 `json:"timer_interrupts" msgpack:"timer_interrupts"`
	ContextSwitches uint64 `json:"context_switches" msgpack:"context_switches"`
}

// Machine bundles the interrupt controller, timer and clock of one simulated computer.
type Machine struct {
	cfg    Config
	stats  Stats
	intr   *Interrupt
	timer  *Timer
	clock  Clock
	tracer trace.Tracer
}

// New constructs a machine with interrupts disabled, as at power-on.
func New(cfg Config, tracer trace.Tracer) *Machine {
	if cfg.TimerPeriod == 0 {
		cfg.TimerPeriod = DefaultTimerPeriod
	}
	if cfg.KernelTick == 0 {
		cfg.KernelTick = DefaultKernelTick
	}
	if cfg.KernelTick >= cfg.TimerPeriod {
		cfg.KernelTick = cfg.TimerPeriod / 2
		if cfg.KernelTick == 0 {
			cfg.KernelTick = 1
		}
	}
	if tracer == nil {
		tracer = trace.Nop
	}
	m := &Machine{cfg: cfg, tracer: tracer}
	m.intr = &Interrupt{m: m}
	m.timer = newTimer(m)
	switch cfg.Mode {
	case TimerModeReal:
		m.clock = &RealClock{m: m, TickDuration: cfg.TickDuration}
	default:
		m.clock = &VirtualClock{m: m}
	}
	return m
}

// Config returns the effective configuration after defaults were applied.
func (m *Machine) Config() Config { return m.cfg }

// Interrupt returns the interrupt controller.
func (m *Machine) Interrupt() *Interrupt { return m.intr }

// Timer returns the periodic timer.
func (m *Machine) Timer() *Timer { return m.timer }

// Stats returns a copy of the machine counters.
func (m *Machine) Stats() Stats { return m.stats }

// Tracer returns the tracer events are emitted to.
func (m *Machine) Tracer() trace.Tracer { return m.tracer }

// CountContextSwitch records a processor hand-off between threads.
func (m *Machine) CountContextSwitch() { m.stats.ContextSwitches++ }

func (m *Machine) advance(ticks uint64, idle bool) {
	m.stats.TotalTicks += ticks
	if idle {
		m.stats.IdleTicks += ticks
	} else {
		m.stats.KernelTicks += ticks
	}
}
