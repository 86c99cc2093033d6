package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"nachos/internal/stress"
	"nachos/internal/ui"
)

type stressOutcome struct {
	summary stress.Summary
	err     error
}

func runStressWithUI(ctx context.Context, title string, opts stress.Options) (stress.Summary, error) {
	plan, err := stress.Plan(opts)
	if err != nil {
		return stress.Summary{}, err
	}
	events := make(chan stress.Event, 256)
	outcomeCh := make(chan stressOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Sink = stress.ChannelSink{Ch: events}
		summary, err := stress.Run(ctx, optsCopy)
		outcomeCh <- stressOutcome{summary: summary, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, plan, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The UI may quit before the runs do; keep the sink from blocking.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.summary, uiErr
	}
	return outcome.summary, outcome.err
}
