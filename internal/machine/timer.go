package machine

import (
	"errors"
	"math/rand"

	"fortio.org/safecast"
)

// ErrHandlerInstalled is returned when a second interrupt handler is installed on the timer.
var ErrHandlerInstalled = errors.New("timer interrupt handler already installed")

// ErrNilHandler is returned when installing a nil interrupt handler.
var ErrNilHandler = errors.New("timer interrupt handler is nil")

// Timer delivers a periodic interrupt and exposes the machine tick counter.
// Only one handler may ever be installed on it.
type Timer struct {
	m       *Machine
	handler func()
	next    uint64
	rng     *rand.Rand
}

func newTimer(m *Machine) *Timer {
	t := &Timer{m: m}
	if m.cfg.Randomize {
		seed := m.cfg.Seed
		if seed == 0 {
			seed = 1
		}
		t.rng = rand.New(rand.NewSource(int64(seed))) //nolint:gosec // deterministic timer jitter
	}
	t.next = t.delay()
	return t
}

// SetInterruptHandler installs the callback run on every timer interrupt.
// The callback runs with interrupts disabled and must not block.
func (t *Timer) SetInterruptHandler(handler func()) error {
	if handler == nil {
		return ErrNilHandler
	}
	if t.handler != nil {
		return ErrHandlerInstalled
	}
	t.handler = handler
	return nil
}

// HasHandler reports whether an interrupt handler is installed.
func (t *Timer) HasHandler() bool {
	return t != nil && t.handler != nil
}

// Time returns the current machine tick.
func (t *Timer) Time() uint64 {
	return t.m.clock.NowTicks()
}

// NextInterrupt returns the tick at which the next timer interrupt is due.
func (t *Timer) NextInterrupt() uint64 {
	return t.next
}

// delay returns the distance to the next interrupt: the configured period,
// or a value uniformly drawn from [1, 2*period] when randomized.
func (t *Timer) delay() uint64 {
	period := t.m.cfg.TimerPeriod
	if t.rng == nil {
		return period
	}
	span, err := safecast.Conv[int64](period * 2)
	if err != nil || span <= 0 {
		return period
	}
	d, err := safecast.Conv[uint64](t.rng.Int63n(span))
	if err != nil {
		return period
	}
	return d + 1
}
