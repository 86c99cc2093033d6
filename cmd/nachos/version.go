package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"nachos/internal/machine"
	"nachos/internal/selftest"
	"nachos/internal/version"
)

// versionPayload is the build fingerprint plus the simulated machine a
// transcript from this binary was recorded on.
type versionPayload struct {
	Tool        string `json:"tool"`
	Version     string `json:"version"`
	GitCommit   string `json:"git_commit,omitempty"`
	BuildDate   string `json:"build_date,omitempty"`
	GoVersion   string `json:"go_version,omitempty"`
	TimerPeriod uint64 `json:"timer_period"`
	KernelTick  uint64 `json:"kernel_tick"`
	Scenarios   int    `json:"scenarios"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the nachos build fingerprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		full, err := cmd.Flags().GetBool("full")
		if err != nil {
			return fmt.Errorf("failed to get full flag: %w", err)
		}
		payload := collectVersion(full)
		switch strings.ToLower(format) {
		case "json":
			return renderVersionJSON(cmd.OutOrStdout(), payload)
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout(), payload)
			return nil
		}
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("full", false, "include commit, build date and Go version")
}

func collectVersion(full bool) versionPayload {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	p := versionPayload{
		Tool:        "nachos",
		Version:     v,
		TimerPeriod: machine.DefaultTimerPeriod,
		KernelTick:  machine.DefaultKernelTick,
		Scenarios:   len(selftest.Names()),
	}
	if full {
		p.GitCommit = valueOrUnknown(version.GitCommit)
		p.BuildDate = valueOrUnknown(version.BuildDate)
		p.GoVersion = runtime.Version()
	}
	return p
}

func renderVersionPretty(out io.Writer, p versionPayload) {
	fmt.Fprintf(out, "nachos %s\n", version.Colored(p.Version))
	fmt.Fprintf(out, "machine: timer every %d ticks, kernel tick %d, %d self tests\n", p.TimerPeriod, p.KernelTick, p.Scenarios)
	if p.GitCommit != "" {
		fmt.Fprintf(out, "commit:  %s\n", p.GitCommit)
		fmt.Fprintf(out, "built:   %s\n", p.BuildDate)
		fmt.Fprintf(out, "go:      %s\n", p.GoVersion)
	}
}

func renderVersionJSON(out io.Writer, p versionPayload) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func valueOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
