// Package repos finds the repositories to test and checks them out.
package repos

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Repo is one hosted repository.
type Repo struct {
	Owner  string `msgpack:"owner"`
	Name   string `msgpack:"name"`
	URL    string `msgpack:"url"`    // https://github.com/<owner>/<name>
	Branch string `msgpack:"branch"` // default branch, empty when unknown
}

// FullName returns "owner/name".
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

func (r Repo) String() string { return r.URL }

// ParseURL builds a Repo from a github.com style URL.
func ParseURL(raw string) (Repo, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Repo{}, err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("not a repository url: %q", raw)
	}
	name := strings.TrimSuffix(parts[1], ".git")
	return Repo{
		Owner: parts[0],
		Name:  name,
		URL:   fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, parts[0], name),
	}, nil
}

// BlobBase returns the prefix of blob links for a checkout at commit.
func (r Repo) BlobBase(commit string) string {
	return r.URL + "/blob/" + commit
}

// BlobURL links to a repository-relative path at commit. line > 0 adds an
// anchor.
func BlobURL(base, rel string, line uint32) string {
	u := base + "/" + path.Clean(strings.TrimPrefix(rel, "/"))
	if line > 0 {
		u += fmt.Sprintf("#L%d", line)
	}
	return u
}
