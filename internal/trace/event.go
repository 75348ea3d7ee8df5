package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeRun covers the whole invocation: compiler download, the repository loop, filing.
	ScopeRun Scope = iota + 1
	// ScopeRepo is one repository.
	ScopeRepo
	// ScopeStep is one step for a repository (clone, install, build-old, ...).
	ScopeStep
	// ScopeProject is one compiler invocation for one project.
	ScopeProject
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeRepo:
		return "repo"
	case ScopeStep:
		return "step"
	case ScopeProject:
		return "project"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	Repo     string            // owner/name of the repository being processed, if any
	Name     string            // e.g. "repo", "install", "tsc -b"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
