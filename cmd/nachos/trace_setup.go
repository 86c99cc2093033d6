package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nachos/internal/trace"
)

// setupTracing inspects trace-related flags, falling back to the [trace]
// table of nachos.toml, and attaches the tracer to the command context.
// It returns a cleanup function and an error if initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	pf := cmd.Root().PersistentFlags()

	traceOutput, err := pf.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	if !pf.Changed("trace") && settings.Trace.Output != "" {
		traceOutput = settings.Trace.Output
	}

	levelStr, err := pf.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	if !pf.Changed("trace-level") && settings.Trace.Level != "" {
		levelStr = settings.Trace.Level
	}

	modeStr, err := pf.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	if !pf.Changed("trace-mode") && settings.Trace.Mode != "" {
		modeStr = settings.Trace.Mode
	}

	formatStr, err := pf.GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	ringSize, err := pf.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if !pf.Changed("trace-ring-size") && settings.Trace.RingSize > 0 {
		ringSize = settings.Trace.RingSize
	}

	heartbeatInterval, err := pf.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}
	if !pf.Changed("trace-heartbeat") && settings.Trace.Heartbeat > 0 {
		heartbeatInterval = settings.Trace.Heartbeat
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// An output file without a level traces kernel lifecycle events.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelKernel
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	stopHeartbeat := trace.StartHeartbeat(ctx, tracer, heartbeatInterval)

	cleanup := func() {
		stopHeartbeat()
		// Ring mode keeps events in memory only; dump them on the way out.
		if mode == trace.ModeRing {
			for _, ring := range trace.Rings(tracer) {
				if err := ring.Dump(cmd.ErrOrStderr(), format); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
				}
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}

	return cleanup, nil
}
