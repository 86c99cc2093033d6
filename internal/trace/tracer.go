package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives kernel events. Implementations must be goroutine-safe:
// the heartbeat and stress workers emit concurrently with a running kernel.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// StorageMode determines how events are stored.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // write as emitted
	ModeRing                          // keep the newest events in memory
	ModeBoth
)

func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// DefaultRingSize is used when Config.RingSize is not positive.
const DefaultRingSize = 4096

// Config holds tracer configuration.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format    // FormatAuto picks from OutputPath
	Output     io.Writer // overrides OutputPath
	OutputPath string    // "" or "-" means stderr
	RingSize   int
}

// New creates a Tracer based on Config.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	format := cfg.Format
	if format == FormatAuto {
		format = formatForPath(cfg.OutputPath)
	}

	var out []Tracer
	if cfg.Mode == ModeStream || cfg.Mode == ModeBoth {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, NewStreamTracer(w, cfg.Level, format))
	}
	if cfg.Mode == ModeRing || cfg.Mode == ModeBoth {
		out = append(out, NewRingTracer(cfg.RingSize, cfg.Level))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
	return Fanout(out...), nil
}

func formatForPath(path string) Format {
	if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".json") {
		return FormatNDJSON
	}
	return FormatText
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything.
var Nop Tracer = nopTracer{}

// fanout forwards every event to each child; children apply their own level.
type fanout struct{ tracers []Tracer }

// Fanout combines tracers. Nil and disabled tracers are dropped, so the
// result is Nop when nothing is left and the tracer itself when one is.
func Fanout(tracers ...Tracer) Tracer {
	var live []Tracer
	for _, t := range tracers {
		if t != nil && t.Enabled() {
			live = append(live, t)
		}
	}
	switch len(live) {
	case 0:
		return Nop
	case 1:
		return live[0]
	}
	return &fanout{tracers: live}
}

func (f *fanout) Emit(ev *Event) {
	for _, t := range f.tracers {
		// Each child stamps its own sequence number.
		cp := *ev
		t.Emit(&cp)
	}
}

func (f *fanout) Flush() error {
	var first error
	for _, t := range f.tracers {
		if err := t.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *fanout) Close() error {
	var first error
	for _, t := range f.tracers {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Level is the most verbose level among the children.
func (f *fanout) Level() Level {
	var l Level
	for _, t := range f.tracers {
		l = max(l, t.Level())
	}
	return l
}

func (f *fanout) Enabled() bool { return len(f.tracers) > 0 }

// Rings returns the ring tracers reachable from t.
func Rings(t Tracer) []*RingTracer {
	switch v := t.(type) {
	case *RingTracer:
		return []*RingTracer{v}
	case *fanout:
		var out []*RingTracer
		for _, child := range v.tracers {
			out = append(out, Rings(child)...)
		}
		return out
	}
	return nil
}

type ctxKey struct{}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}
