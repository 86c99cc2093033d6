// Package config loads nachos.toml, the optional settings file for the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"nachos/internal/kernel"
	"nachos/internal/kthread"
	"nachos/internal/machine"
	"nachos/internal/trace"
)

// FileName is the settings file searched for from the working directory upward.
const FileName = "nachos.toml"

// Config mirrors the tables of nachos.toml. Zero values mean "use the default".
type Config struct {
	Machine   MachineConfig   `toml:"machine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Trace     TraceConfig     `toml:"trace"`
	Stress    StressConfig    `toml:"stress"`
}

type MachineConfig struct {
	TimerPeriod  uint64        `toml:"timer_period"`
	KernelTick   uint64        `toml:"kernel_tick"`
	Randomize    bool          `toml:"randomize"`
	Mode         string        `toml:"mode"`
	TickDuration time.Duration `toml:"tick_duration"`
}

type SchedulerConfig struct {
	Fuzz bool   `toml:"fuzz"`
	Seed uint64 `toml:"seed"`
}

type TraceConfig struct {
	Level     string        `toml:"level"`
	Mode      string        `toml:"mode"`
	Output    string        `toml:"output"`
	RingSize  int           `toml:"ring_size"`
	Heartbeat time.Duration `toml:"heartbeat"`
}

type StressConfig struct {
	Seeds     int    `toml:"seeds"`
	FirstSeed uint64 `toml:"first_seed"`
	Jobs      int    `toml:"jobs"`
}

// File is a loaded settings file.
type File struct {
	Path   string
	Config Config
}

// Find walks from startDir up to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadNearest finds and loads the closest settings file above startDir.
// It reports false without error when there is none.
func LoadNearest(startDir string) (*File, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return &File{Path: path, Config: cfg}, true, nil
}

// Load parses and validates one settings file. Unknown keys are errors.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that TOML typing cannot.
func (c Config) Validate() error {
	if _, err := c.Machine.timerMode(); err != nil {
		return err
	}
	m := c.Machine
	if m.TimerPeriod != 0 && m.KernelTick != 0 && m.KernelTick >= m.TimerPeriod {
		return fmt.Errorf("[machine].kernel_tick (%d) must be below timer_period (%d)", m.KernelTick, m.TimerPeriod)
	}
	if c.Trace.Level != "" {
		if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
			return fmt.Errorf("[trace].level: %w", err)
		}
	}
	if c.Trace.Mode != "" {
		if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
			return fmt.Errorf("[trace].mode: %w", err)
		}
	}
	if c.Trace.RingSize < 0 {
		return fmt.Errorf("[trace].ring_size must not be negative")
	}
	if c.Stress.Seeds < 0 || c.Stress.Jobs < 0 {
		return fmt.Errorf("[stress].seeds and jobs must not be negative")
	}
	return nil
}

func (m MachineConfig) timerMode() (machine.TimerMode, error) {
	switch strings.ToLower(m.Mode) {
	case "", "virtual":
		return machine.TimerModeVirtual, nil
	case "real":
		return machine.TimerModeReal, nil
	default:
		return machine.TimerModeVirtual, fmt.Errorf("[machine].mode: invalid timer mode %q (expected: virtual|real)", m.Mode)
	}
}

// Kernel converts the settings into a boot configuration.
func (c Config) Kernel() (kernel.Config, error) {
	mode, err := c.Machine.timerMode()
	if err != nil {
		return kernel.Config{}, err
	}
	return kernel.Config{
		Machine: machine.Config{
			TimerPeriod:  c.Machine.TimerPeriod,
			KernelTick:   c.Machine.KernelTick,
			Randomize:    c.Machine.Randomize,
			Seed:         c.Scheduler.Seed,
			Mode:         mode,
			TickDuration: c.Machine.TickDuration,
		},
		Scheduler: kthread.Config{
			Fuzz: c.Scheduler.Fuzz,
			Seed: c.Scheduler.Seed,
		},
	}, nil
}
