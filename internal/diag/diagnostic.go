package diag

import "strconv"

// Code is a compiler diagnostic number, rendered as TS<n>.
type Code uint32

const (
	UnknownCode Code = 0
	// CodeOverwritesInput is "Cannot write file ... because it would overwrite
	// input file". It shows up when outputs of a previous build are still on
	// disk, so it says nothing about the compiler under test.
	CodeOverwritesInput Code = 5055
)

func (c Code) String() string {
	return "TS" + strconv.FormatUint(uint64(c), 10)
}

// Diagnostic is one message reported by the compiler.
type Diagnostic struct {
	Severity Severity `msgpack:"severity"`
	Code     Code     `msgpack:"code"`
	Text     string   `msgpack:"text"` // full message, continuation lines joined with "\n"

	File   string `msgpack:"file,omitempty"` // repository-relative, empty at project scope
	Line   uint32 `msgpack:"line,omitempty"`
	Column uint32 `msgpack:"column,omitempty"`

	FileURL    string `msgpack:"file_url,omitempty"` // blob link to File#L<line>, empty at project scope
	ProjectURL string `msgpack:"project_url"`        // blob link to the config that produced it
}

// HasLocation reports whether the diagnostic points into a file.
func (d *Diagnostic) HasLocation() bool { return d.File != "" }

// ProjectErrors is the build result of one entry-point project.
type ProjectErrors struct {
	ProjectURL      string       `msgpack:"project_url"`
	IsComposite     bool         `msgpack:"is_composite"`
	HasBuildFailure bool         `msgpack:"has_build_failure"` // compiler failed without usable diagnostics
	Errors          []Diagnostic `msgpack:"errors"`
}

// Failed reports whether the project produced anything but a clean build.
func (p *ProjectErrors) Failed() bool {
	return p.HasBuildFailure || len(p.Errors) > 0
}

// RepoErrors is the result of building every project of one repository
// with one compiler version.
type RepoErrors struct {
	HasConfigFailure bool            `msgpack:"has_config_failure"`
	Projects         []ProjectErrors `msgpack:"projects"`
}

// Find returns the project built from the config at projectURL.
func (r *RepoErrors) Find(projectURL string) (*ProjectErrors, bool) {
	for i := range r.Projects {
		if r.Projects[i].ProjectURL == projectURL {
			return &r.Projects[i], true
		}
	}
	return nil, false
}

// NumFailed counts projects with a build failure or any diagnostics.
func (r *RepoErrors) NumFailed() int {
	n := 0
	for i := range r.Projects {
		if r.Projects[i].Failed() {
			n++
		}
	}
	return n
}
