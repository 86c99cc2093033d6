package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nachos/internal/config"
	"nachos/internal/observ"
	"nachos/internal/selftest"
	"nachos/internal/transcript"
	"nachos/internal/version"
)

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "probe"}
	cmd.Flags().Uint64("seed", 0, "")
	cmd.Flags().Bool("fuzz", false, "")
	cmd.Flags().Bool("randomize-timer", false, "")
	return cmd
}

func TestKernelConfigFlagsOverrideSettings(t *testing.T) {
	orig := settings
	defer func() { settings = orig }()
	settings = config.Config{
		Machine:   config.MachineConfig{TimerPeriod: 300},
		Scheduler: config.SchedulerConfig{Fuzz: true, Seed: 5},
	}

	cmd := newFlagCmd()
	cfg, err := kernelConfig(cmd)
	if err != nil {
		t.Fatalf("kernelConfig: %v", err)
	}
	if cfg.Scheduler.Seed != 5 || !cfg.Scheduler.Fuzz || cfg.Machine.TimerPeriod != 300 {
		t.Fatalf("settings not applied: %+v", cfg)
	}

	for name, value := range map[string]string{"seed": "9", "fuzz": "false", "randomize-timer": "true"} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	cfg, err = kernelConfig(cmd)
	if err != nil {
		t.Fatalf("kernelConfig: %v", err)
	}
	if cfg.Scheduler.Seed != 9 || cfg.Machine.Seed != 9 || cfg.Scheduler.Fuzz || !cfg.Machine.Randomize {
		t.Fatalf("flags did not override settings: %+v", cfg)
	}
}

func TestKernelConfigWithoutFlags(t *testing.T) {
	if _, err := kernelConfig(&cobra.Command{Use: "bare"}); err != nil {
		t.Fatalf("kernelConfig: %v", err)
	}
}

func TestUIModeFlag(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		var got uiMode
		if err := got.Set(in); err != nil || got != want {
			t.Errorf("Set(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	var m uiMode
	if err := m.Set("sometimes"); err == nil {
		t.Error("expected error for invalid mode")
	}
	if !uiModeOn.interactive(false) || uiModeOff.interactive(false) {
		t.Error("explicit modes must win over terminal detection")
	}
	if uiModeOn.interactive(true) {
		t.Error("quiet must disable the progress view")
	}

	err := stressCmd.Flags().Set("ui", "off")
	if err != nil {
		t.Fatalf("set --ui: %v", err)
	}
	if got := *stressCmd.Flags().Lookup("ui").Value.(*uiMode); got != uiModeOff {
		t.Fatalf("--ui parsed as %q", got)
	}
}

func TestPrintEntry(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	var buf bytes.Buffer
	printEntry(&buf, transcript.Entry{Tick: 510, Thread: "L1 (#2)", Name: "listen", Detail: "7 from S (#4)"})
	printEntry(&buf, transcript.Entry{Tick: 520, Kind: "fault", Name: "deadlock"})
	want := "[     510 tick] L1 (#2) • listen (7 from S (#4))\n[     520 tick] FAULT deadlock\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestRenderVersionJSON(t *testing.T) {
	orig := version.Version
	version.Version = "1.2.3"
	defer func() { version.Version = orig }()

	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, collectVersion(true)); err != nil {
		t.Fatalf("renderVersionJSON: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if payload.Tool != "nachos" || payload.Version != "1.2.3" || payload.GitCommit == "" || payload.GoVersion == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.TimerPeriod != 500 || payload.KernelTick != 10 || payload.Scenarios != len(selftest.Names()) {
		t.Fatalf("unexpected machine fingerprint: %+v", payload)
	}

	short := collectVersion(false)
	if short.GitCommit != "" || short.BuildDate != "" {
		t.Fatalf("short fingerprint leaked build details: %+v", short)
	}
}

func TestPrintTimings(t *testing.T) {
	var buf bytes.Buffer
	printTimings(&buf, stressTimingFixture())
	out := buf.String()
	if !strings.Contains(out, "communicator") || !strings.Contains(out, "1,234.50 ms") || !strings.Contains(out, "13.0 runs/s") {
		t.Fatalf("unexpected timings output:\n%s", out)
	}
}

func stressTimingFixture() observ.Report {
	return observ.Report{
		TotalMS: 1234.5,
		Runs:    16,
		Phases:  []observ.PhaseReport{{Name: "communicator", DurationMS: 1234.5, Runs: 16, RunsPerSec: 12.96}},
	}
}
