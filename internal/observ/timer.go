// Package observ times the phases of a stress run and reports throughput.
package observ

import "time"

// Phase is one timed scenario sweep.
type Phase struct {
	Name   string
	Start  time.Time
	Dur    time.Duration
	Runs   int
	Failed int
}

// Timer tracks consecutive phases. It is not safe for concurrent use; the
// stress driver times scenarios from one goroutine.
type Timer struct {
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End closes phase idx with its run counts. Unknown indices are ignored.
func (t *Timer) End(idx, runs, failed int) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Runs = runs
	p.Failed = failed
}

// PhaseReport is the serializable summary of one phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Runs       int     `json:"runs"`
	Failed     int     `json:"failed"`
	RunsPerSec float64 `json:"runs_per_sec"`
}

// Report aggregates every phase of a Timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Runs    int           `json:"runs"`
	Failed  int           `json:"failed"`
	Phases  []PhaseReport `json:"phases"`
}

// Report summarizes the phases recorded so far.
func (t *Timer) Report() Report {
	var rep Report
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
		rep.Runs += p.Runs
		rep.Failed += p.Failed
		rep.Phases = append(rep.Phases, PhaseReport{
			Name:       p.Name,
			DurationMS: millis(p.Dur),
			Runs:       p.Runs,
			Failed:     p.Failed,
			RunsPerSec: perSecond(p.Runs, p.Dur),
		})
	}
	rep.TotalMS = millis(total)
	return rep
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func perSecond(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
