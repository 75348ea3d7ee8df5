package runner

import (
	"bufio"
	"regexp"
	"strings"

	"errdeltas/internal/diag"
)

// [12:00:00 PM] Building project '/repo/packages/a/tsconfig.json'...
var buildingProject = regexp.MustCompile(`Building project '([^']+)'`)

// collector turns one compiler transcript into the diagnostics of one entry
// point.
type collector struct {
	b       *build
	cwd     string
	current string // project the next diagnostics belong to
	bag     *diag.Bag
}

func (b *build) newCollector(cwd, projectURL string) *collector {
	return &collector{
		b:       b,
		cwd:     cwd,
		current: projectURL,
		bag:     diag.NewBag(b.opts.MaxDiagnostics),
	}
}

// feed parses output. With attribute set, "Building project" lines switch
// the project diagnostics are charged to.
func (c *collector) feed(output string, attribute bool) {
	p := diag.NewParser(c.add)
	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if attribute {
			if m := buildingProject.FindStringSubmatch(line); m != nil {
				p.Flush()
				c.current = c.b.projectURL(m[1])
				continue
			}
		}
		p.Line(line)
	}
	p.Flush()
}

func (c *collector) add(d diag.Diagnostic) {
	// --verbose progress and summaries are not regressions
	if d.Severity < diag.SevError {
		return
	}
	d.ProjectURL = c.current
	if d.HasLocation() {
		c.b.fileURL(c.cwd, &d)
	}
	c.bag.Add(d)
}

// result closes the collection. A failing exit without a single diagnostic
// is a build failure.
func (c *collector) result(projectURL string, composite bool, exitCode int) diag.ProjectErrors {
	if n := c.bag.Dropped(); n > 0 {
		c.b.logger.Warn("diagnostics over the limit dropped", "project", projectURL, "dropped", n)
	}
	errs := c.bag.Items()
	return diag.ProjectErrors{
		ProjectURL:      projectURL,
		IsComposite:     composite,
		HasBuildFailure: exitCode != 0 && len(errs) == 0,
		Errors:          errs,
	}
}
