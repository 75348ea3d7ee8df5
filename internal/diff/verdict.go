// Package diff compares the diagnostics of two compiler versions for one
// repository and renders the regressions as a markdown section.
package diff

import "errdeltas/internal/diag"

type VerdictKind uint8

const (
	// VerdictCompare: at least one project built cleanly with the old compiler.
	VerdictCompare VerdictKind = iota
	// VerdictOldGraphFailure: the old compiler could not build the project graph.
	VerdictOldGraphFailure
	// VerdictAllOldFailed: no project built cleanly with the old compiler,
	// which includes a repository without projects.
	VerdictAllOldFailed
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictCompare:
		return "compare"
	case VerdictOldGraphFailure:
		return "old-graph-failure"
	case VerdictAllOldFailed:
		return "all-old-failed"
	default:
		return "unknown"
	}
}

// Verdict decides, from the old build alone, whether the new build is worth
// running.
type Verdict struct {
	Kind         VerdictKind
	NumProjects  int
	NumOldFailed int
}

// Skip reports whether the repository should not be built with the new compiler.
func (v Verdict) Skip() bool { return v.Kind != VerdictCompare }

// Precheck inspects the old build result.
func Precheck(old *diag.RepoErrors) Verdict {
	if old.HasConfigFailure {
		return Verdict{Kind: VerdictOldGraphFailure}
	}
	v := Verdict{
		Kind:         VerdictCompare,
		NumProjects:  len(old.Projects),
		NumOldFailed: old.NumFailed(),
	}
	if v.NumOldFailed == v.NumProjects {
		v.Kind = VerdictAllOldFailed
	}
	return v
}
