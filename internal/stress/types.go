package stress

import "time"

// Status captures progress of one seeded run.
type Status string

const (
	// StatusQueued indicates the run is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the run is executing.
	StatusWorking Status = "working"
	// StatusDone indicates the scenario held.
	StatusDone Status = "done"
	// StatusError indicates the scenario failed.
	StatusError Status = "error"
)

// Event reports progress for one scenario/seed pair.
type Event struct {
	Scenario string
	Seed     uint64
	Status   Status
	Err      error
	Elapsed  time.Duration
}

// Key identifies the run an event belongs to.
func (e Event) Key() string {
	return RunKey(e.Scenario, e.Seed)
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use; runs report from several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}
