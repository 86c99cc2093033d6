package main

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"nachos/internal/kernel"
	"nachos/internal/observ"
)

func printStats(out io.Writer, rep kernel.Report) {
	p := message.NewPrinter(language.English)
	s := rep.Stats
	p.Fprintf(out, "ticks:      %d (kernel %d, idle %d)\n", s.TotalTicks, s.KernelTicks, s.IdleTicks)
	p.Fprintf(out, "interrupts: %d\n", s.TimerInterrupts)
	p.Fprintf(out, "switches:   %d\n", s.ContextSwitches)
	p.Fprintf(out, "elapsed:    %.2f ms\n", toMillis(rep.Elapsed))
}

func printTimings(out io.Writer, report observ.Report) {
	p := message.NewPrinter(language.English)
	p.Fprintln(out, "timings:")
	for _, phase := range report.Phases {
		p.Fprintf(out, "  %-20s %9.2f ms  %5d runs  %3d failed  %8.1f runs/s\n",
			phase.Name, phase.DurationMS, phase.Runs, phase.Failed, phase.RunsPerSec)
	}
	p.Fprintf(out, "  %-20s %9.2f ms  %5d runs  %3d failed\n", "total", report.TotalMS, report.Runs, report.Failed)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
