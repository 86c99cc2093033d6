package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nachos/internal/selftest"
)

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run every self-test scenario once",
	Args:  cobra.NoArgs,
	RunE:  runSelftest,
}

func init() {
	selftestCmd.Flags().Uint64("seed", 0, "seed for fuzz scheduling and timer jitter")
	selftestCmd.Flags().Bool("fuzz", false, "pick a random ready thread instead of the oldest")
	selftestCmd.Flags().Bool("randomize-timer", false, "jitter the timer interrupt period")
	selftestCmd.Flags().Bool("list", false, "list scenarios instead of running them")
}

func runSelftest(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return fmt.Errorf("failed to get list flag: %w", err)
	}
	if list {
		for _, sc := range selftest.Scenarios() {
			fmt.Fprintf(out, "%-20s %s\n", sc.Name, dimColor.Sprint(sc.Description))
		}
		return nil
	}

	cfg, err := kernelConfig(cmd)
	if err != nil {
		return err
	}
	if settingsPath != "" && !quiet(cmd) {
		fmt.Fprintln(out, dimColor.Sprintf("using %s", settingsPath))
	}
	results := selftest.RunAll(cmd.Context(), cfg)
	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
		if quiet(cmd) && res.Passed() {
			continue
		}
		printResult(out, res)
	}
	if !quiet(cmd) {
		fmt.Fprintf(out, "\n%d scenarios, %d failed\n", len(results), failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func printResult(out io.Writer, res selftest.Result) {
	if res.Passed() {
		fmt.Fprintf(out, "%s %-20s %s\n", passColor.Sprint("PASS"), res.Scenario,
			dimColor.Sprintf("%d ticks", res.Report.Stats.TotalTicks))
		return
	}
	fmt.Fprintf(out, "%s %-20s %v\n", failColor.Sprint("FAIL"), res.Scenario, res.Err)
}
