package trace

import "fmt"

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff   Level = iota
	LevelError       // only heartbeats and explicit dumps
	LevelRepo        // run + repository boundaries
	LevelStep        // per-repository steps
	LevelDebug       // everything including single compiler invocations
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelRepo:
		return "repo"
	case LevelStep:
		return "step"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off", "OFF":
		return LevelOff, nil
	case "error", "ERROR":
		return LevelError, nil
	case "repo", "REPO":
		return LevelRepo, nil
	case "step", "STEP":
		return LevelStep, nil
	case "debug", "DEBUG":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|repo|step|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff, LevelError:
		return false
	case LevelRepo:
		return scope <= ScopeRepo
	case LevelStep:
		return scope <= ScopeStep
	case LevelDebug:
		return true
	}
	return false
}
