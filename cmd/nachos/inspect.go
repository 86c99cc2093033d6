package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"nachos/internal/kernel"
	"nachos/internal/transcript"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <file.mp>",
	Short: "Print a transcript saved by run --record or stress --record-dir",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("scope", "", "only show events of this scope (kernel|sync|thread|tick)")
	inspectCmd.Flags().String("thread", "", "only show events emitted while this thread ran")
	inspectCmd.Flags().Int("limit", 0, "show at most this many events (0=all)")
	inspectCmd.Flags().Bool("stats", false, "print machine statistics")
}

func runInspect(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	scope, err := flags.GetString("scope")
	if err != nil {
		return fmt.Errorf("failed to get scope flag: %w", err)
	}
	thread, err := flags.GetString("thread")
	if err != nil {
		return fmt.Errorf("failed to get thread flag: %w", err)
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	showStats, err := flags.GetBool("stats")
	if err != nil {
		return fmt.Errorf("failed to get stats flag: %w", err)
	}

	tr, err := transcript.Load(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printTranscriptHeader(out, tr)
	if showStats {
		printStats(out, transcriptReport(tr))
	}

	shown := 0
	for _, e := range tr.Events {
		if scope != "" && e.Scope != scope {
			continue
		}
		if thread != "" && !strings.HasPrefix(e.Thread, thread) {
			continue
		}
		if limit > 0 && shown == limit {
			fmt.Fprintf(out, "... (limit %d reached)\n", limit)
			break
		}
		printEntry(out, e)
		shown++
	}
	return nil
}

func printTranscriptHeader(out io.Writer, tr *transcript.Transcript) {
	verdict := passColor.Sprint(tr.Outcome)
	if tr.Outcome != "pass" {
		verdict = failColor.Sprint(tr.Outcome)
	}
	fmt.Fprintf(out, "scenario %s: %s\n", tr.Scenario, verdict)
	fmt.Fprintf(out, "seed %d, fuzz %t, timer period %d, randomized %t\n", tr.Seed, tr.Fuzz, tr.TimerPeriod, tr.Randomize)
	fmt.Fprintf(out, "recorded %s, %d events\n", tr.RecordedAt.Format("2006-01-02 15:04:05Z07:00"), tr.EventCount)
	if tr.Error != "" {
		fmt.Fprintf(out, "error: %s\n", tr.Error)
	}
	fmt.Fprintln(out)
}

func printEntry(out io.Writer, e transcript.Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%8d tick] ", e.Tick)
	if e.Kind == "fault" {
		b.WriteString(failColor.Sprint("FAULT "))
	}
	if e.Thread != "" {
		b.WriteString(e.Thread)
		b.WriteString(" • ")
	}
	b.WriteString(e.Name)
	if e.Detail != "" {
		b.WriteString(" ")
		b.WriteString(dimColor.Sprintf("(%s)", e.Detail))
	}
	fmt.Fprintln(out, b.String())
}

func transcriptReport(tr *transcript.Transcript) kernel.Report {
	return kernel.Report{Stats: tr.Stats, Elapsed: tr.Elapsed}
}
