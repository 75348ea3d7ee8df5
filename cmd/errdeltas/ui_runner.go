package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"errdeltas/internal/orchestrator"
	"errdeltas/internal/ui"
)

type runOutcome struct {
	summary *orchestrator.Summary
	err     error
}

// runWithUI runs the orchestrator in the background and renders its events
// until it is done. newRunner receives the sink the runner must report to.
func runWithUI(ctx context.Context, title string, newRunner func(orchestrator.ProgressSink) *orchestrator.Runner) (*orchestrator.Runner, *orchestrator.Summary, error) {
	events := make(chan orchestrator.Event, 256)
	outcomeCh := make(chan runOutcome, 1)
	runner := newRunner(orchestrator.ChannelSink{Ch: events})

	go func() {
		s, err := runner.Run(ctx)
		outcomeCh <- runOutcome{summary: s, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := awaitOutcome(events, outcomeCh)
	if uiErr != nil {
		return runner, outcome.summary, uiErr
	}
	return runner, outcome.summary, outcome.err
}

// awaitOutcome discards events nobody renders any more so the run is never
// blocked on a full channel after the program quits early.
func awaitOutcome(events <-chan orchestrator.Event, outcomeCh <-chan runOutcome) runOutcome {
	for range events {
	}
	return <-outcomeCh
}
