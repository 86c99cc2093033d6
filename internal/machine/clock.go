package machine

import (
	"math"
	"time"

	"fortio.org/safecast"
)

// TimerMode controls whether idle time is skipped or paced against the wall clock.
type TimerMode uint8

const (
	TimerModeVirtual TimerMode = iota
	TimerModeReal
)

// String returns the string representation of TimerMode.
func (m TimerMode) String() string {
	switch m {
	case TimerModeVirtual:
		return "virtual"
	case TimerModeReal:
		return "real"
	default:
		return "unknown"
	}
}

// Clock supplies machine time and the behavior of jumping ahead over idle time.
type Clock interface {
	NowTicks() uint64
	SleepUntilTicks(deadline uint64)
}

// VirtualClock advances machine time without blocking.
type VirtualClock struct {
	m *Machine
}

func (c *VirtualClock) NowTicks() uint64 {
	if c == nil || c.m == nil {
		return 0
	}
	return c.m.stats.TotalTicks
}

func (c *VirtualClock) SleepUntilTicks(deadline uint64) {
	if c == nil || c.m == nil {
		return
	}
	now := c.m.stats.TotalTicks
	if deadline <= now {
		return
	}
	c.m.advance(deadline-now, true)
}

// RealClock blocks the OS thread for TickDuration per skipped tick, then advances machine time.
type RealClock struct {
	m            *Machine
	TickDuration time.Duration
}

func (c *RealClock) NowTicks() uint64 {
	if c == nil || c.m == nil {
		return 0
	}
	return c.m.stats.TotalTicks
}

func (c *RealClock) SleepUntilTicks(deadline uint64) {
	if c == nil || c.m == nil {
		return
	}
	now := c.m.stats.TotalTicks
	if deadline <= now {
		return
	}
	delta := deadline - now
	if c.TickDuration > 0 {
		maxTicks := uint64(math.MaxInt64 / int64(c.TickDuration))
		ticks := delta
		if ticks > maxTicks {
			ticks = maxTicks
		}
		n, err := safecast.Conv[int64](ticks)
		if err == nil {
			time.Sleep(time.Duration(n) * c.TickDuration)
		}
	}
	c.m.advance(delta, true)
}
