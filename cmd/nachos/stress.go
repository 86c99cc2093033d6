package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"nachos/internal/stress"
	"nachos/internal/transcript"
)

var stressCmd = &cobra.Command{
	Use:   "stress [flags] [scenario...]",
	Short: "Run scenarios across many fuzz-scheduling seeds",
	Long: `Run each scenario once per seed with random thread selection, in parallel.
Without arguments every registered scenario is stressed.`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().Int("seeds", 0, "seeds per scenario (default from nachos.toml, else 16)")
	stressCmd.Flags().Uint64("first-seed", 0, "first seed to use (default 1)")
	stressCmd.Flags().Int("jobs", 0, "kernels to run in parallel (0=GOMAXPROCS)")
	stressCmd.Flags().Bool("randomize-timer", false, "jitter the timer interrupt period")
	ui := uiModeAuto
	stressCmd.Flags().Var(&ui, "ui", "progress UI")
	stressCmd.Flags().Bool("timings", false, "show per-scenario timings")
	stressCmd.Flags().String("record-dir", "", "save a transcript of every failed run into this directory")
}

func runStress(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	seeds, err := flags.GetInt("seeds")
	if err != nil {
		return fmt.Errorf("failed to get seeds flag: %w", err)
	}
	if !flags.Changed("seeds") {
		seeds = settings.Stress.Seeds
	}
	firstSeed, err := flags.GetUint64("first-seed")
	if err != nil {
		return fmt.Errorf("failed to get first-seed flag: %w", err)
	}
	if !flags.Changed("first-seed") {
		firstSeed = settings.Stress.FirstSeed
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if !flags.Changed("jobs") {
		jobs = settings.Stress.Jobs
	}
	mode := uiModeAuto
	if f := flags.Lookup("ui"); f != nil {
		mode = *f.Value.(*uiMode)
	}
	showTimings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	recordDir, err := flags.GetString("record-dir")
	if err != nil {
		return fmt.Errorf("failed to get record-dir flag: %w", err)
	}
	cfg, err := kernelConfig(cmd)
	if err != nil {
		return err
	}

	opts := stress.Options{
		Scenarios: args,
		Seeds:     seeds,
		FirstSeed: firstSeed,
		Jobs:      jobs,
		Machine:   cfg.Machine,
	}

	var summary stress.Summary
	if mode.interactive(quiet(cmd)) {
		summary, err = runStressWithUI(cmd.Context(), "stress", opts)
	} else {
		summary, err = stress.Run(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range summary.Failures {
		fmt.Fprintf(out, "%s %-20s seed %-6d %v\n", failColor.Sprint("FAIL"), res.Scenario, res.Config.Scheduler.Seed, res.Err)
		if recordDir == "" {
			continue
		}
		tr, err := transcript.FromResult(res)
		if err != nil {
			return err
		}
		name := res.Scenario + "-" + strconv.FormatUint(res.Config.Scheduler.Seed, 10) + ".mp"
		if err := transcript.Save(filepath.Join(recordDir, name), tr); err != nil {
			return fmt.Errorf("failed to record transcript: %w", err)
		}
	}
	if !quiet(cmd) {
		verdict := passColor.Sprint("ok")
		if len(summary.Failures) > 0 {
			verdict = failColor.Sprint("FAILED")
		}
		fmt.Fprintf(out, "%s: %d runs, %d failed\n", verdict, summary.Runs, len(summary.Failures))
	}
	if showTimings {
		printTimings(out, summary.Timing)
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d of %d runs failed", len(summary.Failures), summary.Runs)
	}
	return nil
}
