package machine

import (
	"strconv"

	"nachos/internal/trace"
)

// Interrupt is the interrupt controller. Disabling it is the only exclusion
// primitive the kernel has: while disabled, no timer interrupt is delivered and
// therefore no preemption happens.
type Interrupt struct {
	m             *Machine
	enabled       bool
	inHandler     bool
	yieldOnReturn bool
	yield         func()
}

// Disable turns interrupts off and returns the previous status.
func (i *Interrupt) Disable() bool {
	prev := i.enabled
	i.enabled = false
	return prev
}

// Restore sets the interrupt status returned by an earlier Disable.
func (i *Interrupt) Restore(status bool) {
	if status {
		i.Enable()
		return
	}
	i.enabled = false
}

// Enable turns interrupts on. Going from disabled to enabled advances the
// clock by one kernel tick and delivers a timer interrupt if one is due.
func (i *Interrupt) Enable() {
	prev := i.enabled
	i.enabled = true
	if !prev {
		i.tick()
	}
}

// Enabled reports whether interrupts are on.
func (i *Interrupt) Enabled() bool { return i.enabled }

// Disabled reports whether interrupts are off.
func (i *Interrupt) Disabled() bool { return !i.enabled }

// InHandler reports whether an interrupt handler is running.
func (i *Interrupt) InHandler() bool { return i.inHandler }

// YieldOnReturn asks for the running thread to yield once the current
// interrupt handler returns. Outside a handler it does nothing.
func (i *Interrupt) YieldOnReturn() {
	if !i.inHandler {
		return
	}
	i.yieldOnReturn = true
}

// SetYieldHandler installs the function used to yield the running thread
// after an interrupt handler asked for it.
func (i *Interrupt) SetYieldHandler(yield func()) {
	i.yield = yield
}

// Idle skips the clock forward to the next timer interrupt and delivers it.
// It is called by the scheduler when no thread is ready; there is no running
// thread to yield, so a yield request from the handler is dropped.
// It reports false when no handler is installed, since then nothing could
// ever become ready.
func (i *Interrupt) Idle() bool {
	t := i.m.timer
	if !t.HasHandler() {
		return false
	}
	prev := i.Disable()
	i.m.clock.SleepUntilTicks(t.next)
	i.deliver()
	i.yieldOnReturn = false
	i.enabled = prev
	return true
}

func (i *Interrupt) tick() {
	if i.inHandler {
		return
	}
	i.m.advance(i.m.cfg.KernelTick, false)
	if i.m.stats.TotalTicks < i.m.timer.next {
		return
	}
	i.deliver()
	if i.yieldOnReturn {
		i.yieldOnReturn = false
		if i.yield != nil {
			i.yield()
		}
	}
}

func (i *Interrupt) deliver() {
	t := i.m.timer
	now := i.m.stats.TotalTicks
	t.next = now + t.delay()
	i.m.stats.TimerInterrupts++
	trace.Point(i.m.tracer, trace.ScopeTick, now, "", "timer.interrupt", "next="+strconv.FormatUint(t.next, 10))
	if t.handler == nil {
		return
	}
	prev := i.enabled
	i.enabled = false
	i.inHandler = true
	t.handler()
	i.inHandler = false
	i.enabled = prev
}
