package ksync

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"nachos/internal/kthread"
)

func TestConditionNoLostWakeup(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			r := choppy(t, seed)
			lock := kthread.NewLock(r.s)
			cond := NewCondition(lock)
			woke := false

			r.s.Fork("sleeper", func() {
				lock.Acquire()
				cond.Sleep()
				woke = true
				lock.Release()
			})
			r.s.Fork("waker", func() {
				lock.Acquire()
				for cond.Waiting() == 0 {
					lock.Release()
					r.s.Yield()
					lock.Acquire()
				}
				cond.Wake()
				lock.Release()
			})
			if err := r.s.Run(); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !woke {
				t.Fatalf("sleeper never resumed")
			}
		})
	}
}

func TestConditionPredicateLoop(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		r := choppy(t, seed)
		lock := kthread.NewLock(r.s)
		cond := NewCondition(lock)
		done := false

		r.s.Fork("waiter", func() {
			lock.Acquire()
			for !done {
				cond.Sleep()
			}
			lock.Release()
		})
		r.s.Fork("setter", func() {
			lock.Acquire()
			done = true
			cond.Wake()
			lock.Release()
		})
		if err := r.s.Run(); err != nil {
			t.Fatalf("seed %d: Run: %v", seed, err)
		}
	}
}

func TestConditionWakeOnEmptyQueueIsNoop(t *testing.T) {
	r := quiet(t)
	lock := kthread.NewLock(r.s)
	cond := NewCondition(lock)
	r.s.Fork("lonely", func() {
		lock.Acquire()
		cond.Wake()
		cond.WakeAll()
		if cond.Waiting() != 0 {
			t.Errorf("empty condition reports %d waiters", cond.Waiting())
		}
		lock.Release()
	})
	if err := r.s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(r.events("cond.wake")); got != 0 {
		t.Fatalf("expected no wake events, got %d", got)
	}
}

func TestConditionWakeAllWakesEachWaiterOnce(t *testing.T) {
	const n = 5
	r := choppy(t, 9)
	lock := kthread.NewLock(r.s)
	cond := NewCondition(lock)
	wakes := make([]int, n)
	left := -1

	for i := range n {
		r.s.Fork(fmt.Sprintf("sleeper-%d", i), func() {
			lock.Acquire()
			cond.Sleep()
			wakes[i]++
			lock.Release()
		})
	}
	r.s.Fork("broadcaster", func() {
		lock.Acquire()
		for cond.Waiting() < n {
			lock.Release()
			r.s.Yield()
			lock.Acquire()
		}
		cond.WakeAll()
		left = cond.Waiting()
		cond.Wake()
		lock.Release()
	})
	if err := r.s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if left != 0 {
		t.Fatalf("WakeAll left %d waiters", left)
	}
	for i, w := range wakes {
		if w != 1 {
			t.Fatalf("sleeper-%d woke %d times", i, w)
		}
	}
	if got := len(r.events("cond.wake")); got != n {
		t.Fatalf("expected %d wake events, got %d", n, got)
	}
}

func TestConditionWakesInFIFOOrder(t *testing.T) {
	r := quiet(t)
	lock := kthread.NewLock(r.s)
	cond := NewCondition(lock)
	var resumed []string

	for _, name := range []string{"first", "second", "third"} {
		r.s.Fork(name, func() {
			lock.Acquire()
			cond.Sleep()
			resumed = append(resumed, name)
			lock.Release()
		})
	}
	r.s.Fork("waker", func() {
		lock.Acquire()
		for cond.Waiting() < 3 {
			lock.Release()
			r.s.Yield()
			lock.Acquire()
		}
		for range 3 {
			cond.Wake()
		}
		lock.Release()
	})
	if err := r.s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"first", "second", "third"}; !slices.Equal(resumed, want) {
		t.Fatalf("want %v, got %v", want, resumed)
	}
}

func TestConditionNoSpuriousWakeup(t *testing.T) {
	r := choppy(t, 3)
	lock := kthread.NewLock(r.s)
	cond := NewCondition(lock)
	other := NewCondition(lock)
	woke := false

	r.s.Fork("sleeper", func() {
		lock.Acquire()
		cond.Sleep()
		woke = true
		lock.Release()
	})
	r.s.Fork("noise", func() {
		for range 20 {
			lock.Acquire()
			other.Wake()
			other.WakeAll()
			r.s.Yield()
			lock.Release()
			r.s.Yield()
		}
	})
	err := r.s.Run()
	var dl *kthread.DeadlockError
	if !errors.As(err, &dl) {
		t.Fatalf("expected the sleeper to stay blocked, got %v", err)
	}
	if !slices.Equal(dl.Blocked, []string{"sleeper (#1)"}) {
		t.Fatalf("unexpected blocked threads: %v", dl.Blocked)
	}
	if woke {
		t.Fatalf("sleeper woke without a wake on its condition")
	}
}

func TestConditionRequiresLock(t *testing.T) {
	cases := []struct {
		name string
		op   string
		call func(*Condition)
	}{
		{"sleep", "cond.sleep", (*Condition).Sleep},
		{"wake", "cond.wake", (*Condition).Wake},
		{"wake-all", "cond.wake_all", (*Condition).WakeAll},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := quiet(t)
			cond := NewCondition(kthread.NewLock(r.s))
			r.s.Fork("careless", func() { tc.call(cond) })
			err := r.s.Run()
			if !errors.Is(err, kthread.ErrPrecondition) {
				t.Fatalf("expected precondition failure, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.op) {
				t.Fatalf("error %q does not name %s", err, tc.op)
			}
		})
	}
}

func TestConditionBoundedBuffer(t *testing.T) {
	const capacity, items = 2, 20
	r := choppy(t, 17)
	lock := kthread.NewLock(r.s)
	notFull := NewCondition(lock)
	notEmpty := NewCondition(lock)
	var buf, got []int

	r.s.Fork("producer", func() {
		for i := 1; i <= items; i++ {
			lock.Acquire()
			for len(buf) == capacity {
				notFull.Sleep()
			}
			buf = append(buf, i)
			notEmpty.Wake()
			lock.Release()
		}
	})
	r.s.Fork("consumer", func() {
		for range items {
			lock.Acquire()
			for len(buf) == 0 {
				notEmpty.Sleep()
			}
			got = append(got, buf[0])
			buf = buf[1:]
			notFull.Wake()
			lock.Release()
		}
	})
	if err := r.s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("item %d: want %d, got %d (all: %v)", i, i+1, v, got)
		}
	}
	if len(got) != items {
		t.Fatalf("consumed %d items, want %d", len(got), items)
	}
}
