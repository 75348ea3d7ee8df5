package diff

import (
	"fmt"
	"regexp"
	"strings"
)

const graphFailureLine = ":exclamation::exclamation: **Unable to build the project graph with the new tsc** :exclamation::exclamation:\n"

var blobPath = regexp.MustCompile(`/blob/[a-f0-9]+/(.+)$`)

// MarkdownLink renders a blob URL as [relative/path](url); other URLs are
// returned unchanged.
func MarkdownLink(url string) string {
	m := blobPath.FindStringSubmatch(url)
	if m == nil {
		return url
	}
	return fmt.Sprintf("[%s](%s)", m[1], url)
}

// OldFailuresLine describes how many projects were already broken.
func (s *RepoSummary) OldFailuresLine() string {
	return fmt.Sprintf("%d of %d projects failed to build with the old tsc", s.NumOldFailed, s.NumProjects)
}

// Markdown renders the repository section of the run report.
func (s *RepoSummary) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# [%s](%s)\n", s.Repo.FullName(), s.Repo.URL)
	if s.NumOldFailed > 0 {
		fmt.Fprintf(&sb, "**%s**\n", s.OldFailuresLine())
	}
	if s.GraphFailure {
		sb.WriteString(graphFailureLine)
		return sb.String()
	}

	for i := range s.Projects {
		p := &s.Projects[i]
		fmt.Fprintf(&sb, "### %s\n", MarkdownLink(p.ProjectURL))
		for _, g := range p.Groups {
			fmt.Fprintf(&sb, " - `%s`\n", g.Text)
			for _, loc := range g.Locations {
				where := "Project Scope"
				if loc.FileURL != "" {
					where = MarkdownLink(loc.FileURL)
				}
				if p.IsComposite {
					where += " in " + MarkdownLink(loc.ProjectURL)
				}
				fmt.Fprintf(&sb, "   - %s\n", where)
			}
		}
	}
	return sb.String()
}
