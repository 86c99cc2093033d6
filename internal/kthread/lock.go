package kthread

import "nachos/internal/trace"

// Lock is a mutual-exclusion lock with FIFO hand-off: Release passes ownership
// directly to the oldest waiter, so a released lock cannot be barged.
type Lock struct {
	s       *Scheduler
	holder  *Thread
	waiters ThreadQueue
}

// NewLock returns an unheld lock scheduled by s.
func NewLock(s *Scheduler) *Lock {
	return &Lock{s: s}
}

// Scheduler returns the scheduler that blocks and readies the lock's waiters.
func (l *Lock) Scheduler() *Scheduler { return l.s }

// Acquire blocks until the current thread holds the lock.
func (l *Lock) Acquire() {
	cur := l.s.Current()
	Assert(cur != nil, "lock.acquire", "no current thread")
	Assert(l.holder != cur, "lock.acquire", "%s already holds the lock", cur)

	prev := l.s.intr.Disable()
	if l.holder != nil {
		l.waiters.Push(cur)
		l.s.point(trace.ScopeThread, "lock.wait", cur.String())
		l.s.Sleep()
	} else {
		l.holder = cur
	}
	l.s.intr.Restore(prev)
}

// Release hands the lock to the oldest waiter, or leaves it free.
func (l *Lock) Release() {
	Assert(l.IsHeldByCurrentThread(), "lock.release", "lock not held by %s", l.s.Current())

	prev := l.s.intr.Disable()
	if next := l.waiters.Pop(); next != nil {
		l.holder = next
		l.s.Ready(next)
	} else {
		l.holder = nil
	}
	l.s.intr.Restore(prev)
}

// IsHeldByCurrentThread reports whether the running thread holds the lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	cur := l.s.Current()
	return cur != nil && l.holder == cur
}

// Waiting returns the number of threads blocked in Acquire.
func (l *Lock) Waiting() int { return l.waiters.Len() }
