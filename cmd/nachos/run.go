package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nachos/internal/selftest"
	"nachos/internal/transcript"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <scenario>",
	Short: "Run one self-test scenario",
	Long: `Boot a fresh kernel, run the named scenario on it and verify the result.
Use "nachos selftest --list" to see the available scenarios.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().Uint64("seed", 0, "seed for fuzz scheduling and timer jitter")
	runCmd.Flags().Bool("fuzz", false, "pick a random ready thread instead of the oldest")
	runCmd.Flags().Bool("randomize-timer", false, "jitter the timer interrupt period")
	runCmd.Flags().String("record", "", "save a transcript of the run to this .mp file")
	runCmd.Flags().Bool("stats", false, "print machine statistics")
}

func runScenario(cmd *cobra.Command, args []string) error {
	name := args[0]
	if _, ok := selftest.Lookup(name); !ok {
		return fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(selftest.Names(), ", "))
	}

	recordPath, err := cmd.Flags().GetString("record")
	if err != nil {
		return fmt.Errorf("failed to get record flag: %w", err)
	}
	showStats, err := cmd.Flags().GetBool("stats")
	if err != nil {
		return fmt.Errorf("failed to get stats flag: %w", err)
	}
	cfg, err := kernelConfig(cmd)
	if err != nil {
		return err
	}

	res := selftest.Run(cmd.Context(), name, cfg)
	out := cmd.OutOrStdout()
	printResult(out, res)
	if showStats {
		printStats(out, res.Report)
	}

	if recordPath != "" {
		tr, err := transcript.FromResult(res)
		if err != nil {
			return err
		}
		if err := transcript.Save(recordPath, tr); err != nil {
			return fmt.Errorf("failed to record transcript: %w", err)
		}
		if !quiet(cmd) {
			fmt.Fprintf(out, "recorded %d events to %s\n", len(tr.Events), recordPath)
		}
	}

	if !res.Passed() {
		return errors.New("scenario failed")
	}
	return nil
}
