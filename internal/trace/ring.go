package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the newest events in a fixed-size circular buffer.
type RingTracer struct {
	mu     sync.RWMutex
	events []Event
	head   int
	total  uint64
	level  Level
}

// NewRingTracer creates a RingTracer holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// Emit stores ev, overwriting the oldest event once the buffer is full.
func (t *RingTracer) Emit(ev *Event) {
	if !accepts(t.level, ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	stored.Seq = NextSeq()
	t.events[t.head] = stored
	t.head = (t.head + 1) % len(t.events)
	t.total++
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n := uint64(len(t.events)); t.total > n {
		return t.total - n
	}
	return 0
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.total < uint64(len(t.events)) {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

// Named returns the stored events called name, oldest first.
func (t *RingTracer) Named(name string) []Event {
	var out []Event
	for _, ev := range t.Snapshot() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Dump writes the stored events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

// accepts applies level filtering; heartbeats and faults pass any enabled level.
func accepts(l Level, ev *Event) bool {
	if ev == nil || l == LevelOff {
		return false
	}
	return l.ShouldEmit(ev.Scope) || ev.Kind == KindHeartbeat || ev.Kind == KindFault
}
