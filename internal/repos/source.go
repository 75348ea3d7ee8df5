package repos

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
)

// Source yields the repositories to test, most relevant first.
type Source interface {
	Repos(ctx context.Context, count int) ([]Repo, error)
}

// StaticSource serves a fixed list, e.g. from the config file.
type StaticSource []Repo

func (s StaticSource) Repos(_ context.Context, count int) ([]Repo, error) {
	if count <= 0 || count > len(s) {
		count = len(s)
	}
	return append([]Repo(nil), s[:count]...), nil
}

// GitHubSource lists the most starred repositories matching a search query.
type GitHubSource struct {
	client *github.Client
	query  string
}

const (
	DefaultQuery = "language:TypeScript"
	maxPerPage   = 100
)

// NewGitHubSource searches with query, authenticated when token is set.
func NewGitHubSource(client *github.Client, token, query string) *GitHubSource {
	if client == nil {
		client = github.NewClient(nil)
	}
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if query == "" {
		query = DefaultQuery
	}
	return &GitHubSource{client: client, query: query}
}

func (s *GitHubSource) Repos(ctx context.Context, count int) ([]Repo, error) {
	opts := &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: min(max(count, 1), maxPerPage)},
	}

	out := make([]Repo, 0, count)
	for len(out) < count {
		res, resp, err := s.client.Search.Repositories(ctx, s.query, opts)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", s.query, err)
		}
		for _, r := range res.Repositories {
			if len(out) == count {
				break
			}
			out = append(out, Repo{
				Owner:  r.GetOwner().GetLogin(),
				Name:   r.GetName(),
				URL:    r.GetHTMLURL(),
				Branch: r.GetDefaultBranch(),
			})
		}
		if resp == nil || resp.NextPage == 0 || len(res.Repositories) == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
