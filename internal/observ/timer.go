// Package observ records how long the steps of one repository took and
// folds those records into run-wide totals.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one timed step.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the steps of one repository in the order they started. It is
// not safe for concurrent use; a repository is processed by one goroutine.
type Timer struct {
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a step and returns the handle End expects.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End stops the step idx; unknown handles are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// PhaseReport is the serialized form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
}

// Report is what a Timer measured, in milliseconds. It travels inside the
// archived repository outcome.
type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(t.phases))}
	for i, p := range t.phases {
		r.Phases[i] = PhaseReport{Name: p.Name, DurationMS: millis(p.Dur), Note: p.Note}
		r.TotalMS += r.Phases[i].DurationMS
	}
	return r
}

// Slowest returns the longest phase.
func (r Report) Slowest() (PhaseReport, bool) {
	if len(r.Phases) == 0 {
		return PhaseReport{}, false
	}
	best := r.Phases[0]
	for _, p := range r.Phases[1:] {
		if p.DurationMS > best.DurationMS {
			best = p
		}
	}
	return best, true
}

// Summary renders the report as a small table headed by title, in seconds.
func (r Report) Summary(title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "timings %s:\n", title)
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "  %-12s %9.2f s", p.Name, p.DurationMS/1000)
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s %9.2f s\n", "total", r.TotalMS/1000)
	return sb.String()
}

// Aggregate sums reports phase by phase. Phases keep the order in which
// their names first appear; the note counts how many reports had the phase.
func Aggregate(reports []Report) Report {
	var out Report
	index := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range reports {
		for _, p := range r.Phases {
			i, ok := index[p.Name]
			if !ok {
				i = len(out.Phases)
				index[p.Name] = i
				out.Phases = append(out.Phases, PhaseReport{Name: p.Name})
			}
			out.Phases[i].DurationMS += p.DurationMS
			counts[p.Name]++
		}
		out.TotalMS += r.TotalMS
	}
	for i := range out.Phases {
		out.Phases[i].Note = fmt.Sprintf("%d repos", counts[out.Phases[i].Name])
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
