package diff

import (
	"errdeltas/internal/diag"
	"errdeltas/internal/repos"
)

// Location is one place a new diagnostic was reported.
type Location struct {
	Code       diag.Code
	FileURL    string // empty at project scope
	ProjectURL string // set only when the project is a composite build
}

// Group is every occurrence of one exact message text.
type Group struct {
	Text      string
	Locations []Location
}

// ProjectDiff lists the new diagnostics of one project that used to build
// cleanly.
type ProjectDiff struct {
	ProjectURL  string
	IsComposite bool
	Groups      []Group
	Count       int
}

// Kind names the build style for log output.
func (p *ProjectDiff) Kind() string {
	if p.IsComposite {
		return "composite"
	}
	return "non-composite"
}

// RepoSummary is the regression report for one repository.
type RepoSummary struct {
	Repo         repos.Repo
	NumProjects  int
	NumOldFailed int
	GraphFailure bool // the new compiler could not build the project graph
	Projects     []ProjectDiff
}

// SawNewErrors reports whether the summary belongs in the run report.
func (s *RepoSummary) SawNewErrors() bool {
	return s.GraphFailure || len(s.Projects) > 0
}

// NewErrorCount is the number of new diagnostics across all projects.
func (s *RepoSummary) NewErrorCount() int {
	n := 0
	for i := range s.Projects {
		n += s.Projects[i].Count
	}
	return n
}

// Compare reports the diagnostics the new compiler emits for projects that
// built cleanly with the old one. A graph failure of the new build is
// reported on its own, without per-project comparison.
func Compare(repo repos.Repo, oldErrs, newErrs *diag.RepoErrors) RepoSummary {
	v := Precheck(oldErrs)
	s := RepoSummary{
		Repo:         repo,
		NumProjects:  v.NumProjects,
		NumOldFailed: v.NumOldFailed,
	}
	if newErrs.HasConfigFailure {
		s.GraphFailure = true
		return s
	}

	for i := range oldErrs.Projects {
		oldProject := &oldErrs.Projects[i]
		if oldProject.Failed() {
			continue
		}
		newProject, ok := newErrs.Find(oldProject.ProjectURL)
		if !ok {
			continue
		}
		if pd, ok := compareProject(oldProject, newProject); ok {
			s.Projects = append(s.Projects, pd)
		}
	}
	return s
}

func compareProject(oldProject, newProject *diag.ProjectErrors) (ProjectDiff, bool) {
	pd := ProjectDiff{
		ProjectURL:  oldProject.ProjectURL,
		IsComposite: oldProject.IsComposite,
	}
	byText := make(map[string]int)
	for i := range newProject.Errors {
		d := &newProject.Errors[i]
		if d.Code == diag.CodeOverwritesInput {
			continue
		}
		loc := Location{Code: d.Code, FileURL: d.FileURL}
		if oldProject.IsComposite {
			loc.ProjectURL = d.ProjectURL
		}
		idx, seen := byText[d.Text]
		if !seen {
			idx = len(pd.Groups)
			byText[d.Text] = idx
			pd.Groups = append(pd.Groups, Group{Text: d.Text})
		}
		pd.Groups[idx].Locations = append(pd.Groups[idx].Locations, loc)
		pd.Count++
	}
	return pd, pd.Count > 0
}
