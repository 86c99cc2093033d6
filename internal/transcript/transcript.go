// Package transcript stores the record of one scenario run on disk as msgpack.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"nachos/internal/machine"
	"nachos/internal/selftest"
	"nachos/internal/trace"
)

// SchemaVersion is bumped whenever the Transcript layout changes.
const SchemaVersion uint16 = 1

// ErrSchemaMismatch is returned by Load for a file written with another schema.
var ErrSchemaMismatch = errors.New("transcript schema mismatch")

// Transcript is the saved record of one run.
type Transcript struct {
	Schema uint16

	Scenario    string
	Seed        uint64
	Fuzz        bool
	TimerPeriod uint64
	Randomize   bool
	RecordedAt  time.Time

	Outcome string // "pass" or "fail"
	Error   string
	Stats   machine.Stats
	Elapsed time.Duration

	EventCount uint32
	Events     []Entry
}

// Entry is one trace event, reduced to what is meaningful after the run.
type Entry struct {
	Seq    uint64
	Tick   uint64
	Kind   string
	Scope  string
	Thread string
	Name   string
	Detail string
}

// FromEvents converts trace events into entries, preserving order.
func FromEvents(events []trace.Event) []Entry {
	out := make([]Entry, len(events))
	for i := range events {
		ev := &events[i]
		out[i] = Entry{
			Seq:    ev.Seq,
			Tick:   ev.Tick,
			Kind:   ev.Kind.String(),
			Scope:  ev.Scope.String(),
			Thread: ev.Thread,
			Name:   ev.Name,
			Detail: ev.Detail,
		}
	}
	return out
}

// FromResult builds a transcript of a finished self-test run.
func FromResult(res selftest.Result) (*Transcript, error) {
	count, err := safecast.Conv[uint32](len(res.Events))
	if err != nil {
		return nil, fmt.Errorf("transcript: %d events: %w", len(res.Events), err)
	}
	t := &Transcript{
		Schema:      SchemaVersion,
		Scenario:    res.Scenario,
		Seed:        res.Config.Scheduler.Seed,
		Fuzz:        res.Config.Scheduler.Fuzz,
		TimerPeriod: res.Config.Machine.TimerPeriod,
		Randomize:   res.Config.Machine.Randomize,
		RecordedAt:  time.Now().UTC(),
		Outcome:     res.Outcome(),
		Stats:       res.Report.Stats,
		Elapsed:     res.Report.Elapsed,
		EventCount:  count,
		Events:      FromEvents(res.Events),
	}
	if res.Err != nil {
		t.Error = res.Err.Error()
	}
	return t, nil
}

// Save writes t to path atomically: the file is encoded next to its
// destination and renamed into place.
func Save(path string, t *Transcript) (err error) {
	if t == nil {
		return errors.New("transcript: nil transcript")
	}
	if t.Schema == 0 {
		t.Schema = SchemaVersion
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*.mp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("transcript: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Load reads a transcript written by Save.
func Load(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t Transcript
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("transcript: decode %s: %w", path, err)
	}
	if t.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has schema %d, want %d", ErrSchemaMismatch, path, t.Schema, SchemaVersion)
	}
	return &t, nil
}
