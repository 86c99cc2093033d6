package ksync

import (
	"container/heap"
	"fmt"

	"fortio.org/safecast"

	"nachos/internal/kthread"
	"nachos/internal/machine"
)

type pendingAlarm struct {
	thread   *kthread.Thread
	deadline uint64
	seq      uint64
}

type alarmHeap []*pendingAlarm

func (h alarmHeap) Len() int { return len(h) }

func (h alarmHeap) Less(i, j int) bool {
	if h[i].deadline == h[j].deadline {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline < h[j].deadline
}

func (h alarmHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *alarmHeap) Push(x any) {
	a, ok := x.(*pendingAlarm)
	if !ok || a == nil {
		return
	}
	*h = append(*h, a)
}

func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return (*pendingAlarm)(nil)
	}
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Alarm uses the hardware timer to put threads to sleep until a deadline.
// It installs itself as the timer's only interrupt handler, so a machine has
// at most one Alarm; create it once at boot and pass it to whoever needs it.
type Alarm struct {
	m       *machine.Machine
	s       *kthread.Scheduler
	intr    *machine.Interrupt
	pending alarmHeap
	byID    map[kthread.ThreadID]struct{}
	nextSeq uint64
}

// NewAlarm installs a new Alarm as the machine's timer interrupt handler.
// It fails with machine.ErrHandlerInstalled if the timer already has one.
func NewAlarm(m *machine.Machine, s *kthread.Scheduler) (*Alarm, error) {
	a := &Alarm{
		m:    m,
		s:    s,
		intr: m.Interrupt(),
		byID: make(map[kthread.ThreadID]struct{}),
	}
	if err := m.Timer().SetInterruptHandler(a.timerInterrupt); err != nil {
		return nil, fmt.Errorf("alarm: %w", err)
	}
	return a, nil
}

// WaitUntil puts the current thread to sleep for at least ticks machine ticks.
// The thread is made ready by the first timer interrupt at which
// now >= (call time + ticks). Non-positive ticks return immediately.
func (a *Alarm) WaitUntil(ticks int64) {
	if ticks <= 0 {
		return
	}
	delta, err := safecast.Conv[uint64](ticks)
	kthread.Assert(err == nil, "alarm.wait", "invalid tick count %d: %v", ticks, err)
	deadline := a.m.Timer().Time() + delta

	// Registration and blocking share one critical section so the interrupt
	// handler never sees an entry whose thread is still running.
	prev := a.intr.Disable()
	cur := a.s.Current()
	kthread.Assert(cur != nil, "alarm.wait", "no current thread")
	_, dup := a.byID[cur.ID()]
	kthread.Assert(!dup, "alarm.wait", "%s already has a pending alarm", cur)
	heap.Push(&a.pending, &pendingAlarm{thread: cur, deadline: deadline, seq: a.nextSeq})
	a.nextSeq++
	a.byID[cur.ID()] = struct{}{}
	emit(a.s, "alarm.wait", fmt.Sprintf("deadline=%d", deadline))
	a.s.Sleep()
	a.intr.Restore(prev)
}

// Pending returns the number of threads waiting for their deadline.
func (a *Alarm) Pending() int { return a.pending.Len() }

// timerInterrupt runs on every timer interrupt with interrupts disabled.
// It readies every thread whose deadline has passed and then asks for the
// running thread to be preempted.
func (a *Alarm) timerInterrupt() {
	now := a.m.Timer().Time()
	for a.pending.Len() > 0 && a.pending[0].deadline <= now {
		due, ok := heap.Pop(&a.pending).(*pendingAlarm)
		if !ok || due == nil {
			continue
		}
		delete(a.byID, due.thread.ID())
		emit(a.s, "alarm.fire", fmt.Sprintf("%s deadline=%d", due.thread, due.deadline))
		a.s.Ready(due.thread)
	}
	a.intr.YieldOnReturn()
}
