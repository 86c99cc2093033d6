package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nachos/internal/machine"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadNearestWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, `
[machine]
timer_period = 200
kernel_tick = 5
randomize = true
mode = "real"
tick_duration = "1ms"

[scheduler]
fuzz = true
seed = 42

[trace]
level = "sync"
mode = "stream"
heartbeat = "2s"

[stress]
seeds = 64
jobs = 4
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	file, ok, err := LoadNearest(nested)
	if err != nil || !ok {
		t.Fatalf("LoadNearest: ok=%v err=%v", ok, err)
	}
	if file.Path != want {
		t.Fatalf("found %s, want %s", file.Path, want)
	}
	cfg := file.Config
	if cfg.Machine.TickDuration != time.Millisecond || cfg.Trace.Heartbeat != 2*time.Second {
		t.Fatalf("durations not decoded: %+v", cfg)
	}
	if cfg.Stress.Seeds != 64 || cfg.Stress.Jobs != 4 {
		t.Fatalf("stress table not decoded: %+v", cfg.Stress)
	}

	kcfg, err := cfg.Kernel()
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	if kcfg.Machine.TimerPeriod != 200 || kcfg.Machine.Mode != machine.TimerModeReal || !kcfg.Machine.Randomize {
		t.Fatalf("machine config not carried over: %+v", kcfg.Machine)
	}
	if !kcfg.Scheduler.Fuzz || kcfg.Scheduler.Seed != 42 || kcfg.Machine.Seed != 42 {
		t.Fatalf("scheduler config not carried over: %+v", kcfg.Scheduler)
	}
}

func TestLoadNearestWithoutFile(t *testing.T) {
	file, ok, err := LoadNearest(t.TempDir())
	if err != nil {
		t.Fatalf("LoadNearest: %v", err)
	}
	// A nachos.toml above the temp dir would be picked up; only check consistency.
	if !ok && file != nil {
		t.Fatalf("got file without ok")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"unknown key", "[machine]\ntimer_perod = 3\n", "unknown keys"},
		{"bad mode", "[machine]\nmode = \"warp\"\n", "invalid timer mode"},
		{"tick too large", "[machine]\ntimer_period = 10\nkernel_tick = 10\n", "kernel_tick"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"bad trace mode", "[trace]\nmode = \"tape\"\n", "[trace].mode"},
		{"negative seeds", "[stress]\nseeds = -1\n", "[stress]"},
		{"syntax", "[machine\n", "failed to parse TOML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestZeroConfigBootsDefaults(t *testing.T) {
	kcfg, err := Config{}.Kernel()
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	if kcfg.Machine.Mode != machine.TimerModeVirtual || kcfg.Scheduler.Fuzz {
		t.Fatalf("unexpected zero config: %+v", kcfg)
	}
}
