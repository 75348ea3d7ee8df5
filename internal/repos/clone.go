package repos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"errdeltas/internal/proc"
)

// Checkout is a local clone of a Repo.
type Checkout struct {
	Repo   Repo
	Dir    string
	Commit string // HEAD at clone time
}

// BlobBase returns the link prefix for files of this checkout.
func (c *Checkout) BlobBase() string { return c.Repo.BlobBase(c.Commit) }

// Cloner makes shallow clones under a parent directory.
type Cloner struct {
	Git string // git binary, "git" when empty
}

// CloneIfAbsent clones repo into parent/<name> unless that directory already
// holds a clone, then resolves HEAD.
func (c Cloner) CloneIfAbsent(ctx context.Context, parent string, repo Repo) (*Checkout, error) {
	dir := filepath.Join(parent, repo.Name)
	_, err := os.Stat(filepath.Join(dir, ".git"))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		args := []string{"clone", "--depth", "1", "--quiet"}
		if repo.Branch != "" {
			args = append(args, "--branch", repo.Branch)
		}
		args = append(args, repo.URL, dir)
		if _, err := proc.RunChecked(ctx, proc.Command{Dir: parent, Name: c.git(), Args: args}); err != nil {
			return nil, fmt.Errorf("clone %s: %w", repo.URL, err)
		}
	default:
		return nil, err
	}

	res, err := proc.RunChecked(ctx, proc.Command{Dir: dir, Name: c.git(), Args: []string{"rev-parse", "HEAD"}})
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD of %s: %w", repo.URL, err)
	}
	return &Checkout{Repo: repo, Dir: dir, Commit: strings.TrimSpace(res.Output)}, nil
}

func (c Cloner) git() string {
	if c.Git == "" {
		return "git"
	}
	return c.Git
}
