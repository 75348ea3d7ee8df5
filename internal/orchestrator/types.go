package orchestrator

import "time"

// Stage describes one step of a repository.
type Stage string

const (
	// StageClone checks the repository out.
	StageClone Stage = "clone"
	// StageInstall restores packages.
	StageInstall Stage = "install"
	// StageBuildOld builds with the old compiler.
	StageBuildOld Stage = "build-old"
	// StageBuildNew builds with the new compiler.
	StageBuildNew Stage = "build-new"
	// StageCompare diffs the two builds.
	StageCompare Stage = "compare"
)

// Stages lists the steps in the order they run.
var Stages = []Stage{StageClone, StageInstall, StageBuildOld, StageBuildNew, StageCompare}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the repository is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the step is running.
	StatusWorking Status = "working"
	// StatusDone indicates the step finished.
	StatusDone Status = "done"
	// StatusSkipped indicates the step was not needed.
	StatusSkipped Status = "skipped"
	// StatusError indicates the step failed and the repository was abandoned.
	StatusError Status = "error"
)

// Event reports progress for a repository. Repo is empty for run-level
// events.
type Event struct {
	Index   int // 1-based position in the run
	Total   int
	Repo    string // owner/name
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	Detail  string
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
