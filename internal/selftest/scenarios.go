package selftest

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"nachos/internal/kernel"
	"nachos/internal/kthread"
	"nachos/internal/trace"
)

func init() {
	register("ping-pong", "two threads take strict turns on a lock and condition", pingPong)
	register("join", "a parent joins children that sleep and yield", join)
	register("alarm", "timed sleeps never end early and end at the first interrupt past the deadline", alarm)
	register("alarm-zero", "zero and negative sleeps return without blocking", alarmZero)
	register("condition", "bounded buffer with two producers and two consumers", condition)
	register("condition-wake-all", "one broadcast wakes every sleeper exactly once", conditionWakeAll)
	register("communicator", "many speakers and listeners pair up in commit order", communicator)
	register("speak-first", "a speaker waits for a listener; a later speaker pairs with a waiting listener", speakFirst)
	register("listen-first", "two listeners wait; one word reaches only the first", listenFirst)
}

func pingPong(k *kernel.Kernel) verifier {
	const rounds = 5
	lock := k.NewLock()
	cond := k.NewCondition(lock)
	turn := 0
	var log []int

	for id := range 2 {
		k.Fork(fmt.Sprintf("player-%d", id), func() {
			for range rounds {
				lock.Acquire()
				for turn != id {
					cond.Sleep()
				}
				log = append(log, id)
				turn = 1 - id
				cond.Wake()
				lock.Release()
				k.Scheduler().Yield()
			}
		})
	}

	return func(runErr error, _ []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if len(log) != 2*rounds {
			return fmt.Errorf("expected %d turns, got %d", 2*rounds, len(log))
		}
		for i, id := range log {
			if id != i%2 {
				return fmt.Errorf("turns out of order: %v", log)
			}
		}
		return nil
	}
}

func join(k *kernel.Kernel) verifier {
	const children = 3
	var finished [children]bool
	var problems []string

	k.Fork("parent", func() {
		kids := make([]*kthread.Thread, 0, children)
		for i := range children {
			kids = append(kids, k.Fork(fmt.Sprintf("child-%d", i), func() {
				k.Alarm().WaitUntil(int64(i) * 150)
				k.Scheduler().Yield()
				finished[i] = true
			}))
		}
		for i, kid := range kids {
			k.Scheduler().Join(kid)
			if !finished[i] || kid.Status() != kthread.StatusFinished {
				problems = append(problems, fmt.Sprintf("join returned before %s finished", kid))
			}
		}
		// Joining a finished thread returns at once.
		k.Scheduler().Join(kids[0])
	})

	return func(runErr error, _ []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if len(problems) > 0 {
			return errors.New(strings.Join(problems, "; "))
		}
		return nil
	}
}

type nap struct {
	ticks      int64
	start, end uint64
	done       bool
}

func alarm(k *kernel.Kernel) verifier {
	naps := []*nap{{ticks: 1}, {ticks: 120}, {ticks: 499}, {ticks: 500}, {ticks: 501}, {ticks: 1234}, {ticks: 40}}
	for i, n := range naps {
		k.Fork(fmt.Sprintf("napper-%d", i), func() {
			n.start = k.Machine().Timer().Time()
			k.Alarm().WaitUntil(n.ticks)
			n.end = k.Machine().Timer().Time()
			n.done = true
		})
	}

	return func(runErr error, events []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		for i, n := range naps {
			if !n.done {
				return fmt.Errorf("napper-%d never woke", i)
			}
			if n.end < n.start+uint64(n.ticks) {
				return fmt.Errorf("napper-%d woke at %d, before %d+%d", i, n.end, n.start, n.ticks)
			}
		}
		if p := k.Alarm().Pending(); p != 0 {
			return fmt.Errorf("%d alarms still pending", p)
		}
		return checkFirstInterrupt(events)
	}
}

// checkFirstInterrupt verifies every alarm fired on the first timer
// interrupt at or after its deadline.
func checkFirstInterrupt(events []trace.Event) error {
	var interrupts []uint64
	for _, ev := range events {
		if ev.Name == "timer.interrupt" {
			interrupts = append(interrupts, ev.Tick)
		}
	}
	for _, ev := range events {
		if ev.Name != "alarm.fire" {
			continue
		}
		idx := strings.LastIndex(ev.Detail, "deadline=")
		if idx < 0 {
			return fmt.Errorf("alarm fire without deadline: %q", ev.Detail)
		}
		deadline, err := strconv.ParseUint(ev.Detail[idx+len("deadline="):], 10, 64)
		if err != nil {
			return fmt.Errorf("alarm fire %q: %w", ev.Detail, err)
		}
		if ev.Tick < deadline {
			return fmt.Errorf("alarm fired early at %d for deadline %d", ev.Tick, deadline)
		}
		for _, tick := range interrupts {
			if tick >= deadline && tick < ev.Tick {
				return fmt.Errorf("interrupt at %d skipped deadline %d, fired at %d", tick, deadline, ev.Tick)
			}
		}
	}
	return nil
}

func alarmZero(k *kernel.Kernel) verifier {
	var before, after uint64
	pending := -1
	k.Fork("impatient", func() {
		before = k.Machine().Timer().Time()
		k.Alarm().WaitUntil(0)
		k.Alarm().WaitUntil(-3)
		pending = k.Alarm().Pending()
		after = k.Machine().Timer().Time()
	})

	return func(runErr error, _ []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if before != after {
			return fmt.Errorf("clock moved from %d to %d", before, after)
		}
		if pending != 0 {
			return fmt.Errorf("non-positive wait left %d alarms pending", pending)
		}
		return nil
	}
}

func condition(k *kernel.Kernel) verifier {
	const capacity, perProducer = 3, 10
	lock := k.NewLock()
	notFull := k.NewCondition(lock)
	notEmpty := k.NewCondition(lock)
	var buf, consumed []int
	overflow := false

	for p := range 2 {
		k.Fork(fmt.Sprintf("producer-%d", p), func() {
			for i := range perProducer {
				lock.Acquire()
				for len(buf) == capacity {
					notFull.Sleep()
				}
				buf = append(buf, p*100+i)
				overflow = overflow || len(buf) > capacity
				notEmpty.Wake()
				lock.Release()
			}
		})
	}
	for c := range 2 {
		k.Fork(fmt.Sprintf("consumer-%d", c), func() {
			for range perProducer {
				lock.Acquire()
				for len(buf) == 0 {
					notEmpty.Sleep()
				}
				consumed = append(consumed, buf[0])
				buf = buf[1:]
				notFull.Wake()
				lock.Release()
			}
		})
	}

	return func(runErr error, _ []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if overflow {
			return errors.New("buffer exceeded its capacity")
		}
		if len(consumed) != 2*perProducer {
			return fmt.Errorf("consumed %d items, want %d", len(consumed), 2*perProducer)
		}
		next := [2]int{}
		for _, v := range consumed {
			p, i := v/100, v%100
			if i != next[p] {
				return fmt.Errorf("producer-%d items out of order: %v", p, consumed)
			}
			next[p]++
		}
		return nil
	}
}

func conditionWakeAll(k *kernel.Kernel) verifier {
	const sleepers = 5
	lock := k.NewLock()
	cond := k.NewCondition(lock)
	wakes := make([]int, sleepers)
	left := -1

	for i := range sleepers {
		k.Fork(fmt.Sprintf("sleeper-%d", i), func() {
			lock.Acquire()
			cond.Sleep()
			wakes[i]++
			lock.Release()
		})
	}
	k.Fork("broadcaster", func() {
		lock.Acquire()
		for cond.Waiting() < sleepers {
			lock.Release()
			waitFor(k, "sleepers", func() bool { return cond.Waiting() == sleepers })
			lock.Acquire()
		}
		cond.WakeAll()
		left = cond.Waiting()
		cond.Wake()
		lock.Release()
	})

	return func(runErr error, _ []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if left != 0 {
			return fmt.Errorf("broadcast left %d waiters", left)
		}
		for i, w := range wakes {
			if w != 1 {
				return fmt.Errorf("sleeper-%d woke %d times", i, w)
			}
		}
		return nil
	}
}

func communicator(k *kernel.Kernel) verifier {
	const pairs = 6
	c := k.NewCommunicator()
	heard := make([]int, pairs)
	returned := 0

	for i := range pairs {
		k.Fork(fmt.Sprintf("speaker-%d", i), func() {
			c.Speak(i + 1)
			returned++
		})
		k.Fork(fmt.Sprintf("listener-%d", i), func() {
			heard[i] = c.Listen()
		})
	}

	return func(runErr error, events []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if returned != pairs {
			return fmt.Errorf("%d of %d speakers returned", returned, pairs)
		}
		got := slices.Clone(heard)
		slices.Sort(got)
		for i, w := range got {
			if w != i+1 {
				return fmt.Errorf("words lost or duplicated: %v", heard)
			}
		}
		spoken, err := words(events, "speak")
		if err != nil {
			return err
		}
		taken, err := words(events, "listen")
		if err != nil {
			return err
		}
		if !slices.Equal(spoken, taken) {
			return fmt.Errorf("words taken in order %v, committed in order %v", taken, spoken)
		}
		if err := checkSpeakersWait(events); err != nil {
			return err
		}
		if c.Pending() != 0 || c.Listeners() != 0 {
			return fmt.Errorf("communicator not drained: pending=%d listeners=%d", c.Pending(), c.Listeners())
		}
		return nil
	}
}

// words extracts the leading word of speak or listen events in order.
func words(events []trace.Event, name string) ([]int, error) {
	var out []int
	for _, ev := range events {
		if ev.Name != name {
			continue
		}
		field, _, _ := strings.Cut(ev.Detail, " ")
		w, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%s event %q: %w", name, ev.Detail, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func speakFirst(k *kernel.Kernel) verifier {
	c := k.NewCommunicator()
	heard := map[string]int{}
	l1Done := false

	k.Fork("driver", func() {
		s1 := k.Fork("S1", func() { c.Speak(10) })
		waitFor(k, "S1 to commit", func() bool { return c.Speakers() == 1 })

		l1 := k.Fork("L1", func() {
			heard["L1"] = c.Listen()
			l1Done = true
		})
		waitFor(k, "L1 to listen", func() bool { return l1Done || c.Listeners() == 1 })

		l2 := k.Fork("L2", func() { heard["L2"] = c.Listen() })
		waitFor(k, "L2 to wait alone", func() bool { return l1Done && c.Listeners() == 1 })

		s2 := k.Fork("S2", func() { c.Speak(20) })
		for _, t := range []*kthread.Thread{s1, l1, l2, s2} {
			k.Scheduler().Join(t)
		}
	})

	return func(runErr error, events []trace.Event) error {
		if err := clean(runErr); err != nil {
			return err
		}
		if heard["L1"] != 10 || heard["L2"] != 20 {
			return fmt.Errorf("unexpected pairing: %v", heard)
		}
		return checkSpeakersWait(events)
	}
}

// checkSpeakersWait verifies that no speaker finished before a listener
// took its word.
func checkSpeakersWait(events []trace.Event) error {
	spoke := map[string]bool{}
	taken := map[string]bool{}
	for _, ev := range events {
		switch ev.Name {
		case "speak":
			spoke[ev.Thread] = true
		case "listen":
			if _, speaker, ok := strings.Cut(ev.Detail, " from "); ok {
				taken[speaker] = true
			}
		case "finish":
			if spoke[ev.Detail] && !taken[ev.Detail] {
				return fmt.Errorf("%s finished before its word was taken", ev.Detail)
			}
		}
	}
	return nil
}

func listenFirst(k *kernel.Kernel) verifier {
	c := k.NewCommunicator()
	heard := map[string]int{}

	k.Fork("driver", func() {
		k.Fork("L1", func() { heard["L1"] = c.Listen() })
		waitFor(k, "L1 to listen", func() bool { return c.Listeners() == 1 })
		k.Fork("L2", func() { heard["L2"] = c.Listen() })
		waitFor(k, "L2 to listen", func() bool { return c.Listeners() == 2 })
		s := k.Fork("S", func() { c.Speak(7) })
		k.Scheduler().Join(s)
	})

	return func(runErr error, _ []trace.Event) error {
		var dl *kthread.DeadlockError
		if !errors.As(runErr, &dl) {
			return fmt.Errorf("expected the second listener to stay blocked, got %v", runErr)
		}
		if len(dl.Blocked) != 1 || !strings.HasPrefix(dl.Blocked[0], "L2 ") {
			return fmt.Errorf("unexpected blocked threads: %v", dl.Blocked)
		}
		if w, ok := heard["L1"]; !ok || w != 7 {
			return fmt.Errorf("first listener should hear 7: %v", heard)
		}
		if _, ok := heard["L2"]; ok {
			return fmt.Errorf("second listener heard a word: %v", heard)
		}
		return nil
	}
}
