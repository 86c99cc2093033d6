package trace

import (
	"strconv"
	"sync/atomic"
	"time"
)

var (
	globalSeq   uint64
	globalSpans uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

func nextSpanID() uint64 {
	return atomic.AddUint64(&globalSpans, 1)
}

// Span brackets an operation in both wall time and simulated ticks.
type Span struct {
	tracer    Tracer
	id        uint64
	parent    uint64
	scope     Scope
	name      string
	started   time.Time
	startTick uint64
}

// Begin emits a span-begin event at tick. A disabled or filtering tracer
// yields an inert span whose End is a no-op.
func Begin(t Tracer, scope Scope, tick uint64, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:    t,
		id:        nextSpanID(),
		parent:    parent,
		scope:     scope,
		name:      name,
		started:   time.Now(),
		startTick: tick,
	}
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		Tick:     tick,
		Name:     name,
	})
	return s
}

// End emits the matching span-end event. The simulated ticks spent inside
// the span are attached as the "ticks" extra. It returns the wall time.
func (s *Span) End(tick uint64, detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	dur := time.Since(s.started)
	var spent uint64
	if tick > s.startTick {
		spent = tick - s.startTick
	}
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Tick:     tick,
		Name:     s.name,
		Detail:   detail,
		Extra:    map[string]string{"ticks": strconv.FormatUint(spent, 10)},
	})
	return dur
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
