package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nachos/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "nachos",
	Short: "Kernel synchronization primitives on a simulated machine",
	Long: `nachos runs kernel threads on a simulated single-processor machine and
exercises its condition variables, alarm and communicator through self tests
and seeded stress runs.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepareRun,
}

// cleanups run after the command finishes, in reverse order of registration.
var cleanups []func()

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to nachos.toml (default: search upward from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.String("trace", "", "write trace events to this file (\"-\" for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|kernel|sync|thread|debug)")
	pf.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	pf.String("trace-format", "auto", "trace output format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept in ring mode")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	err := rootCmd.Execute()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	if err != nil {
		os.Exit(1)
	}
}

// prepareRun loads settings and starts tracing and profiling for every subcommand.
func prepareRun(cmd *cobra.Command, _ []string) error {
	if err := setupColor(cmd); err != nil {
		return err
	}
	if err := loadSettings(cmd); err != nil {
		return err
	}
	traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, traceCleanup)
	profCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, profCleanup)
	return nil
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
