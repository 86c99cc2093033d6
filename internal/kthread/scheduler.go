// Package kthread implements kernel threads on a single simulated processor.
//
// Every kernel thread is backed by a goroutine, but exactly one of them holds
// the processor at any moment: the scheduler hands it over explicitly through
// per-thread wake channels. All scheduler, lock and primitive state is only
// ever touched by the holder, so interrupt disabling is the sole exclusion
// mechanism the kernel needs, as on a uniprocessor.
package kthread

import (
	"math/rand"
	"runtime"

	"nachos/internal/machine"
	"nachos/internal/trace"
)

// Config configures scheduling behavior.
type Config struct {
	// Fuzz picks a uniformly random ready thread instead of the oldest one.
	Fuzz bool
	// Seed makes fuzz scheduling reproducible.
	Seed uint64
}

// IdleSource reports blocked threads that a future timer interrupt will make ready.
type IdleSource interface {
	Pending() int
}

// Scheduler runs kernel threads on one simulated processor with a FIFO ready
// queue by default. Fuzz scheduling is supported for reproducible interleavings.
type Scheduler struct {
	cfg     Config
	m       *machine.Machine
	intr    *machine.Interrupt
	tracer  trace.Tracer
	nextID  ThreadID
	threads []*Thread
	ready   ThreadQueue
	current *Thread
	source  IdleSource
	rng     *rand.Rand
	idle    chan struct{}
	halted  chan struct{}
	fault   error
	done    bool
}

// NewScheduler constructs a scheduler for the machine and registers it as the
// machine's yield handler.
func NewScheduler(m *machine.Machine, cfg Config) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		m:      m,
		intr:   m.Interrupt(),
		tracer: m.Tracer(),
		nextID: 1,
		idle:   make(chan struct{}, 1),
		halted: make(chan struct{}),
	}
	if cfg.Fuzz {
		seed := cfg.Seed
		if seed == 0 {
			seed = 1
		}
		s.rng = rand.New(rand.NewSource(int64(seed))) //nolint:gosec // deterministic scheduler seed
	}
	s.intr.SetYieldHandler(s.preempt)
	return s
}

// Machine returns the machine the scheduler runs on.
func (s *Scheduler) Machine() *machine.Machine { return s.m }

// SetIdleSource registers the component whose pending timed waits keep the
// idle loop advancing time instead of reporting a deadlock.
func (s *Scheduler) SetIdleSource(src IdleSource) { s.source = src }

// Current returns the running thread, or nil when called from outside a kernel thread.
func (s *Scheduler) Current() *Thread { return s.current }

// Threads returns every forked thread in fork order.
func (s *Scheduler) Threads() []*Thread {
	return append([]*Thread(nil), s.threads...)
}

// Fork creates a thread running fn and makes it ready. It may be called before
// Run from the booting goroutine, or from a running kernel thread.
func (s *Scheduler) Fork(name string, fn func()) *Thread {
	Assert(fn != nil, "fork", "nil body for thread %q", name)
	Assert(!s.isHalted(), "fork", "machine is halted")
	prev := s.intr.Disable()
	t := &Thread{
		id:     s.nextID,
		name:   name,
		status: StatusNew,
		fn:     fn,
		wake:   make(chan struct{}, 1),
	}
	s.nextID++
	s.threads = append(s.threads, t)
	s.point(trace.ScopeThread, "fork", t.String())
	s.launch(t)
	s.Ready(t)
	s.intr.Restore(prev)
	return t
}

// Ready moves a blocked or new thread into the ready queue. Interrupts must be disabled.
func (s *Scheduler) Ready(t *Thread) {
	Assert(s.intr.Disabled(), "ready", "interrupts must be disabled")
	Assert(t != nil, "ready", "nil thread")
	Assert(!s.ready.Contains(t), "ready", "%s is already ready", t)
	Assert(t.status != StatusFinished, "ready", "%s has finished", t)
	t.status = StatusReady
	s.ready.Push(t)
	s.point(trace.ScopeThread, "ready", t.String())
}

// Sleep blocks the current thread until another thread or an interrupt handler
// calls Ready on it. Interrupts must be disabled; they are still disabled when
// Sleep returns.
func (s *Scheduler) Sleep() {
	Assert(s.intr.Disabled(), "sleep", "interrupts must be disabled")
	t := s.current
	Assert(t != nil, "sleep", "no current thread")
	if t.status == StatusRunning {
		t.status = StatusBlocked
	}
	s.point(trace.ScopeThread, "block", t.String())
	s.handOff()
	s.await(t)
}

// Yield gives the processor to the next ready thread, if any, and returns when
// the current thread is scheduled again.
func (s *Scheduler) Yield() {
	t := s.current
	Assert(t != nil, "yield", "no current thread")
	prev := s.intr.Disable()
	if s.ready.Len() > 0 {
		s.point(trace.ScopeThread, "yield", t.String())
		s.Ready(t)
		s.handOff()
		s.await(t)
	}
	s.intr.Restore(prev)
}

// Join blocks the current thread until t has finished.
func (s *Scheduler) Join(t *Thread) {
	cur := s.current
	Assert(cur != nil, "join", "no current thread")
	Assert(t != nil, "join", "nil thread")
	Assert(t != cur, "join", "%s cannot join itself", t)
	prev := s.intr.Disable()
	if t.status != StatusFinished {
		t.joiners.Push(cur)
		s.Sleep()
	}
	s.intr.Restore(prev)
}

// Run drives the machine until every thread has finished. It returns a
// *DeadlockError when threads remain blocked with no timed wait pending, and
// a *Fault when a thread panicked. In both cases the machine is halted and
// the remaining thread goroutines are unwound.
func (s *Scheduler) Run() error {
	Assert(!s.done, "run", "scheduler already ran")
	Assert(s.current == nil, "run", "Run called from a kernel thread")
	span := trace.Begin(s.tracer, trace.ScopeKernel, s.m.Timer().Time(), "scheduler.run", 0)
	for {
		if next := s.nextReady(); next != nil {
			s.dispatch(next)
			<-s.idle
			if s.fault != nil {
				s.halt()
				span.End(s.m.Timer().Time(), "fault")
				return s.fault
			}
			continue
		}
		if s.live() == 0 {
			s.done = true
			span.End(s.m.Timer().Time(), "done")
			return nil
		}
		if s.source != nil && s.source.Pending() > 0 {
			advanced, err := s.idleStep()
			if err != nil {
				s.fault = err
				s.halt()
				span.End(s.m.Timer().Time(), "fault")
				return err
			}
			if advanced {
				continue
			}
		}
		err := &DeadlockError{Tick: s.m.Timer().Time(), Blocked: s.blockedNames()}
		trace.Fault(s.tracer, err.Tick, "", "deadlock", err.Error())
		s.halt()
		span.End(s.m.Timer().Time(), "deadlock")
		return err
	}
}

func (s *Scheduler) preempt() {
	if s.current == nil {
		return
	}
	s.Yield()
}

func (s *Scheduler) launch(t *Thread) {
	go func() {
		s.await(t)
		defer s.exit(t)
		s.point(trace.ScopeThread, "start", t.String())
		s.intr.Enable()
		t.fn()
	}()
}

func (s *Scheduler) exit(t *Thread) {
	r := recover()
	if s.isHalted() {
		return
	}
	s.intr.Disable()
	t.status = StatusFinished
	if r != nil {
		f := &Fault{Thread: t.name, ID: t.id, Tick: s.m.Timer().Time(), Err: faultFromPanic(r)}
		trace.Fault(s.tracer, f.Tick, t.String(), "fault", f.Err.Error())
		s.fault = f
		s.current = nil
		s.idle <- struct{}{}
		return
	}
	s.point(trace.ScopeThread, "finish", t.String())
	for j := t.joiners.Pop(); j != nil; j = t.joiners.Pop() {
		s.Ready(j)
	}
	s.handOff()
}

// handOff passes the processor to the next ready thread, or back to the idle
// loop in Run when nothing is ready. The caller must not touch kernel state
// afterwards until it is woken again.
func (s *Scheduler) handOff() {
	next := s.nextReady()
	if next == nil {
		s.current = nil
		s.idle <- struct{}{}
		return
	}
	s.dispatch(next)
}

func (s *Scheduler) dispatch(next *Thread) {
	s.current = next
	next.status = StatusRunning
	s.m.CountContextSwitch()
	s.point(trace.ScopeThread, "switch", next.String())
	next.wake <- struct{}{}
}

func (s *Scheduler) await(t *Thread) {
	select {
	case <-t.wake:
	case <-s.halted:
		runtime.Goexit()
	}
}

func (s *Scheduler) nextReady() *Thread {
	for s.ready.Len() > 0 {
		idx := 0
		if s.rng != nil {
			idx = s.rng.Intn(s.ready.Len())
		}
		t := s.ready.PopAt(idx)
		if t.status == StatusFinished {
			continue
		}
		return t
	}
	return nil
}

func (s *Scheduler) idleStep() (advanced bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Thread: "idle", Tick: s.m.Timer().Time(), Err: faultFromPanic(r)}
		}
	}()
	return s.intr.Idle(), nil
}

func (s *Scheduler) live() int {
	n := 0
	for _, t := range s.threads {
		if t.status != StatusFinished {
			n++
		}
	}
	return n
}

func (s *Scheduler) blockedNames() []string {
	var names []string
	for _, t := range s.threads {
		if t.status == StatusBlocked {
			names = append(names, t.String())
		}
	}
	return names
}

func (s *Scheduler) halt() {
	s.done = true
	s.current = nil
	if s.isHalted() {
		return
	}
	close(s.halted)
}

func (s *Scheduler) isHalted() bool {
	select {
	case <-s.halted:
		return true
	default:
		return false
	}
}

func (s *Scheduler) point(scope trace.Scope, name, detail string) {
	if !s.tracer.Enabled() {
		return
	}
	thread := ""
	if s.current != nil {
		thread = s.current.String()
	}
	trace.Point(s.tracer, scope, s.m.Timer().Time(), thread, name, detail)
}
