package orchestrator

import (
	"errdeltas/internal/observ"
	"errdeltas/internal/repos"
)

// Result is how far a repository got.
type Result string

const (
	ResultDenied          Result = "denied"
	ResultCloneFailed     Result = "clone-failed"
	ResultInstallFailed   Result = "install-failed"
	ResultBuildFailed     Result = "build-failed"
	ResultOldGraphFailure Result = "old-graph-failure"
	ResultAllOldFailed    Result = "all-old-failed"
	ResultCompared        Result = "compared"
)

// RepoOutcome is the record kept for every repository of a run.
type RepoOutcome struct {
	Repo         repos.Repo    `msgpack:"repo"`
	Commit       string        `msgpack:"commit,omitempty"`
	Result       Result        `msgpack:"result"`
	Stage        Stage         `msgpack:"stage,omitempty"` // where a failure happened
	Error        string        `msgpack:"error,omitempty"`
	TimedOut     bool          `msgpack:"timed_out,omitempty"`
	NumProjects  int           `msgpack:"num_projects"`
	NumOldFailed int           `msgpack:"num_old_failed"`
	NewErrors    int           `msgpack:"new_errors"`
	GraphFailure bool          `msgpack:"graph_failure,omitempty"`
	Markdown     string        `msgpack:"markdown,omitempty"`
	Timings      observ.Report `msgpack:"timings"`
}

// Reported reports whether the repository contributes to the run summary.
func (o *RepoOutcome) Reported() bool { return o.Markdown != "" }

// Summary is the result of a whole run.
type Summary struct {
	OldVersion   string
	NewVersion   string
	Text         string // concatenated markdown of every reported repository
	SawNewErrors bool
	Outcomes     []RepoOutcome
}

// Count returns how many repositories ended with r.
func (s *Summary) Count(r Result) int {
	n := 0
	for i := range s.Outcomes {
		if s.Outcomes[i].Result == r {
			n++
		}
	}
	return n
}
