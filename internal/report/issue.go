// Package report publishes the result of a run: the regression issue, the
// msgpack archive of per-repository outcomes and its upload.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"

	"errdeltas/internal/ctxlog"
)

// DefaultIssueRepo receives the issue when the config names no other.
const DefaultIssueRepo = "microsoft/typescript"

var ErrIssueRepo = errors.New("issue repository must be owner/name")

// Issue is what gets filed at the end of a run.
type Issue struct {
	Title string
	Body  string
	Close bool // file it closed: the run saw no regression
}

// NewIssue builds the run report. summary is the concatenated markdown of
// every repository with regressions.
func NewIssue(oldVersion, newVersion, summary string, sawNewErrors bool) Issue {
	return Issue{
		Title: fmt.Sprintf("[NewErrors] %s vs %s", newVersion, oldVersion),
		Body:  fmt.Sprintf("The following errors were reported by %s, but not by %s\n\n%s", newVersion, oldVersion, summary),
		Close: !sawNewErrors,
	}
}

// Filed identifies a created issue.
type Filed struct {
	Number int
	URL    string
	Closed bool
}

// GitHubFiler files issues in one repository.
type GitHubFiler struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubFiler targets fullName ("owner/name"), authenticated with token.
func NewGitHubFiler(client *github.Client, token, fullName string) (*GitHubFiler, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: %q", ErrIssueRepo, fullName)
	}
	if client == nil {
		client = github.NewClient(nil)
	}
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubFiler{client: client, owner: owner, repo: repo}, nil
}

// File creates the issue and closes it right away when it reports nothing,
// so that open issues always need attention.
func (f *GitHubFiler) File(ctx context.Context, issue Issue) (*Filed, error) {
	logger := ctxlog.FromContext(ctx)

	created, _, err := f.client.Issues.Create(ctx, f.owner, f.repo, &github.IssueRequest{
		Title: github.Ptr(issue.Title),
		Body:  github.Ptr(issue.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("create issue in %s/%s: %w", f.owner, f.repo, err)
	}
	filed := &Filed{Number: created.GetNumber(), URL: created.GetHTMLURL()}
	logger.Info("created issue", "number", filed.Number, "url", filed.URL)

	if !issue.Close {
		return filed, nil
	}
	if _, _, err := f.client.Issues.Edit(ctx, f.owner, f.repo, filed.Number, &github.IssueRequest{
		State: github.Ptr("closed"),
	}); err != nil {
		return filed, fmt.Errorf("close issue #%d: %w", filed.Number, err)
	}
	filed.Closed = true
	return filed, nil
}
