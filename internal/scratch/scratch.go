// Package scratch manages the per-repository working directory. With
// mounting enabled the directory is a fresh tmpfs for every repository, so
// whatever a build leaves behind disappears on release.
package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"errdeltas/internal/ctxlog"
	"errdeltas/internal/proc"
)

// Workspace is the scratch directory shared by all repositories of a run.
type Workspace struct {
	Dir   string
	Size  string // tmpfs size, e.g. "2g"
	Mount bool   // mount a tmpfs per repository
	Sudo  bool   // prefix mount commands with sudo
}

// Root is where repositories are cloned.
func (w *Workspace) Root() string { return w.Dir }

// Init creates the mount point.
func (w *Workspace) Init(ctx context.Context) error {
	if w.Mount && w.Sudo {
		_, err := w.run(ctx, "sudo", "mkdir", "-p", w.Dir)
		return err
	}
	return os.MkdirAll(w.Dir, 0o755)
}

// Prepare makes the directory ready for one repository.
func (w *Workspace) Prepare(ctx context.Context) error {
	if !w.Mount {
		return os.MkdirAll(w.Dir, 0o755)
	}
	_, err := w.privileged(ctx, "mount", "-t", "tmpfs", "-o", "size="+w.Size, "tmpfs", w.Dir)
	return err
}

// Release throws the repository's files away.
func (w *Workspace) Release(ctx context.Context) error {
	if w.Mount {
		_, err := w.privileged(ctx, "umount", w.Dir)
		return err
	}
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.Dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ReportUsage logs memory and disk usage. Failures are logged, not returned.
func (w *Workspace) ReportUsage(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	sections := []struct {
		title string
		cmds  []string
	}{
		{"memory", []string{"free -h"}},
		{"disk", []string{"df -h", "df -i"}},
		{"download directory", []string{"ls -lh " + shellQuote(w.Dir)}},
		{"home directory", []string{"du -csh ~/.[^.]*", "du -csh ~/.cache/*"}},
	}
	for _, s := range sections {
		for _, c := range s.cmds {
			res, err := proc.Run(ctx, proc.Command{Name: "sh", Args: []string{"-c", c}})
			out := strings.TrimSpace(res.Output)
			if err != nil {
				logger.Warn("resource report failed", "section", s.title, "cmd", c, "err", err)
				continue
			}
			logger.Info("resource usage", "section", s.title, "cmd", c, "output", out)
		}
	}
}

func (w *Workspace) privileged(ctx context.Context, name string, args ...string) (proc.Result, error) {
	if w.Sudo {
		return w.run(ctx, "sudo", append([]string{name}, args...)...)
	}
	return w.run(ctx, name, args...)
}

func (w *Workspace) run(ctx context.Context, name string, args ...string) (proc.Result, error) {
	res, err := proc.RunChecked(ctx, proc.Command{Name: name, Args: args})
	if err != nil {
		return res, fmt.Errorf("scratch %s: %w", w.Dir, err)
	}
	return res, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
