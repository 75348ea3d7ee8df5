package main

import (
	"fmt"
	"io"

	"errdeltas/internal/observ"
	"errdeltas/internal/orchestrator"
)

// printRepoTimings prints one table per repository that ran any step, then
// the per-step totals of the run.
func printRepoTimings(out io.Writer, s *orchestrator.Summary) {
	if out == nil || s == nil {
		return
	}
	reports := make([]observ.Report, 0, len(s.Outcomes))
	for i := range s.Outcomes {
		o := &s.Outcomes[i]
		if len(o.Timings.Phases) == 0 {
			continue
		}
		reports = append(reports, o.Timings)
		if _, err := io.WriteString(out, o.Timings.Summary(o.Repo.FullName())); err != nil {
			panic(err)
		}
	}
	if len(reports) == 0 {
		return
	}
	total := observ.Aggregate(reports)
	if _, err := io.WriteString(out, total.Summary("run")); err != nil {
		panic(err)
	}
	if slow, ok := total.Slowest(); ok {
		if _, err := fmt.Fprintf(out, "slowest step: %s (%.1f s)\n", slow.Name, slow.DurationMS/1000); err != nil {
			panic(err)
		}
	}
}
