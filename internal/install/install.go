// Package install restores the npm dependencies of a checkout.
package install

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"errdeltas/internal/ctxlog"
	"errdeltas/internal/proc"
)

type Tool string

const (
	NPM  Tool = "npm"
	Yarn Tool = "yarn"
	PNPM Tool = "pnpm"
)

// Command is one install step.
type Command struct {
	Directory string
	Tool      Tool
	Arguments []string
}

func (c Command) proc() proc.Command {
	return proc.Command{Dir: c.Directory, Name: string(c.Tool), Args: c.Arguments}
}

var lockfiles = []struct {
	name string
	tool Tool
	args []string
}{
	{"package-lock.json", NPM, []string{"ci"}},
	{"npm-shrinkwrap.json", NPM, []string{"ci"}},
	{"yarn.lock", Yarn, []string{"install", "--frozen-lockfile"}},
	{"pnpm-lock.yaml", PNPM, []string{"install", "--frozen-lockfile"}},
}

var skippedDirs = map[string]struct{}{
	"node_modules":     {},
	"bower_components": {},
	".git":             {},
	".yarn":            {},
	".pnpm-store":      {},
}

// Plan returns the install commands for root: one per package.json directory
// that owns a lockfile, root first. A root package.json without any lockfile
// in the tree gets a plain npm install.
func Plan(root string, ignoreScripts bool) ([]Command, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "package.json" {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i] == root || dirs[j] == root {
			return dirs[i] == root && dirs[j] != root
		}
		return dirs[i] < dirs[j]
	})

	var cmds []Command
	hasRootManifest := false
	for _, dir := range dirs {
		if dir == root {
			hasRootManifest = true
		}
		for _, lf := range lockfiles {
			if !fileExists(filepath.Join(dir, lf.name)) {
				continue
			}
			args := append([]string(nil), lf.args...)
			if ignoreScripts {
				args = append(args, "--ignore-scripts")
			}
			cmds = append(cmds, Command{Directory: dir, Tool: lf.tool, Arguments: args})
			break
		}
	}
	if len(cmds) == 0 && hasRootManifest {
		args := []string{"install"}
		if ignoreScripts {
			args = append(args, "--ignore-scripts")
		}
		cmds = append(cmds, Command{Directory: root, Tool: NPM, Arguments: args})
	}
	return cmds, nil
}

// Execute runs cmds in order and stops at the first failure. When yarn ran,
// its global cache is cleaned afterwards to give the scratch disk back.
func Execute(ctx context.Context, root string, cmds []Command) error {
	logger := ctxlog.FromContext(ctx)
	usedYarn := false
	for _, c := range cmds {
		usedYarn = usedYarn || c.Tool == Yarn
		logger.Info("installing packages", "dir", c.Directory, "tool", c.Tool)
		if _, err := proc.RunChecked(ctx, c.proc()); err != nil {
			return fmt.Errorf("install in %s: %w", c.Directory, err)
		}
	}
	if usedYarn {
		clean := Command{Directory: root, Tool: Yarn, Arguments: []string{"cache", "clean", "--all"}}
		if _, err := proc.RunChecked(ctx, clean.proc()); err != nil {
			return fmt.Errorf("yarn cache clean: %w", err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Installer plans and runs the install commands of a checkout.
type Installer struct {
	IgnoreScripts bool
}

func (i Installer) Install(ctx context.Context, dir string) error {
	cmds, err := Plan(dir, i.IgnoreScripts)
	if err != nil {
		return fmt.Errorf("plan install for %s: %w", dir, err)
	}
	if len(cmds) == 0 {
		ctxlog.FromContext(ctx).Info("nothing to install", "dir", dir)
		return nil
	}
	return Execute(ctx, dir, cmds)
}
