package ksync

import (
	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/trace"
)

// Condition is a Mesa-style condition variable bound to one lock. Sleep, Wake
// and WakeAll must be called with the lock held.
//
// A woken thread is only made ready; it competes for the lock again before
// Sleep returns, so callers re-check their predicate in a loop.
type Condition struct {
	lock    *kthread.Lock
	s       *kthread.Scheduler
	intr    *machine.Interrupt
	waiters kthread.ThreadQueue
}

// NewCondition returns a condition variable associated with lock.
func NewCondition(lock *kthread.Lock) *Condition {
	s := lock.Scheduler()
	return &Condition{
		lock: lock,
		s:    s,
		intr: s.Machine().Interrupt(),
	}
}

// Sleep atomically releases the lock and blocks until Wake or WakeAll picks
// this thread, then reacquires the lock before returning.
func (c *Condition) Sleep() {
	kthread.Assert(c.lock.IsHeldByCurrentThread(), "cond.sleep", "lock not held by %s", c.s.Current())

	// Enqueue, release and block form one critical section: a Wake cannot
	// run between them, so it either finds this thread queued and asleep or
	// runs before the enqueue while this thread still holds the lock.
	prev := c.intr.Disable()
	cur := c.s.Current()
	c.waiters.Push(cur)
	emit(c.s, "cond.sleep", cur.String())
	c.lock.Release()
	c.s.Sleep()
	c.intr.Restore(prev)

	c.lock.Acquire()
}

// Wake makes the longest-waiting thread ready. It does nothing when no thread waits.
func (c *Condition) Wake() {
	kthread.Assert(c.lock.IsHeldByCurrentThread(), "cond.wake", "lock not held by %s", c.s.Current())

	prev := c.intr.Disable()
	c.wakeOne()
	c.intr.Restore(prev)
}

// WakeAll makes every waiting thread ready, oldest first.
func (c *Condition) WakeAll() {
	kthread.Assert(c.lock.IsHeldByCurrentThread(), "cond.wake_all", "lock not held by %s", c.s.Current())

	prev := c.intr.Disable()
	for c.wakeOne() {
	}
	c.intr.Restore(prev)
}

// Waiting returns the number of threads asleep on the condition.
func (c *Condition) Waiting() int { return c.waiters.Len() }

func (c *Condition) wakeOne() bool {
	t := c.waiters.Pop()
	if t == nil {
		return false
	}
	emit(c.s, "cond.wake", t.String())
	c.s.Ready(t)
	return true
}

func emit(s *kthread.Scheduler, name, detail string) {
	m := s.Machine()
	t := m.Tracer()
	if !t.Enabled() {
		return
	}
	thread := ""
	if cur := s.Current(); cur != nil {
		thread = cur.String()
	}
	trace.Point(t, trace.ScopeSync, m.Timer().Time(), thread, name, detail)
}
