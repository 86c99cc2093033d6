package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nachos/internal/prof"
)

// setupProfiling starts the profiles requested by the persistent flags. The
// returned cleanup stops them and writes the heap profile.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	pf := cmd.Root().PersistentFlags()
	var opts prof.Options
	for flag, dst := range map[string]*string{
		"cpu-profile":   &opts.CPU,
		"mem-profile":   &opts.Mem,
		"runtime-trace": &opts.Trace,
	} {
		v, err := pf.GetString(flag)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		*dst = v
	}
	if opts == (prof.Options{}) {
		return func() {}, nil
	}

	session, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}, nil
}
