package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nachos/internal/config"
	"nachos/internal/kernel"
)

// settings holds nachos.toml values; command-line flags override them.
var (
	settings     config.Config
	settingsPath string
)

func loadSettings(cmd *cobra.Command) error {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		settings, settingsPath = cfg, path
		return nil
	}
	file, ok, err := config.LoadNearest(".")
	if err != nil {
		return err
	}
	if ok {
		settings, settingsPath = file.Config, file.Path
	}
	return nil
}

// kernelConfig builds the boot configuration from settings and the
// --seed, --fuzz and --randomize-timer flags of cmd, when it has them.
func kernelConfig(cmd *cobra.Command) (kernel.Config, error) {
	cfg, err := settings.Kernel()
	if err != nil {
		return kernel.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		seed, err := flags.GetUint64("seed")
		if err != nil {
			return kernel.Config{}, fmt.Errorf("failed to get seed flag: %w", err)
		}
		cfg.Scheduler.Seed = seed
		cfg.Machine.Seed = seed
	}
	if flags.Lookup("fuzz") != nil && flags.Changed("fuzz") {
		fuzz, err := flags.GetBool("fuzz")
		if err != nil {
			return kernel.Config{}, fmt.Errorf("failed to get fuzz flag: %w", err)
		}
		cfg.Scheduler.Fuzz = fuzz
	}
	if flags.Lookup("randomize-timer") != nil && flags.Changed("randomize-timer") {
		randomize, err := flags.GetBool("randomize-timer")
		if err != nil {
			return kernel.Config{}, fmt.Errorf("failed to get randomize-timer flag: %w", err)
		}
		cfg.Machine.Randomize = randomize
	}
	return cfg, nil
}
