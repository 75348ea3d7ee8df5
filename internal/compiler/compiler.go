// Package compiler fetches released compiler packages from the npm registry.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"errdeltas/internal/ctxlog"
	"errdeltas/internal/proc"
)

var (
	ErrTarballName = errors.New("unexpected tarball name")
	ErrMissingTSC  = errors.New("compiler entry point not found")
)

// typescript-5.4.0-dev.20240101.tgz -> dir "typescript-5.4.0-dev.20240101", version "5.4.0-dev.20240101"
var tarballName = regexp.MustCompile(`^(typescript-(.+))\..+$`)

// Compiler is an unpacked compiler release.
type Compiler struct {
	Requested string // version as given on the command line
	Version   string // version npm resolved it to
	Dir       string // unpacked package root
	TSC       string // lib/tsc.js under Dir
}

// Acquirer downloads releases into WorkDir.
type Acquirer struct {
	WorkDir string
	NPM     string // npm binary, "npm" when empty
	Tar     string // tar binary, "tar" when empty
}

// installMu serializes replacing unpacked packages in WorkDir. Two requested
// versions ("5.4" and "5.4.5") can resolve to the same release.
var installMu sync.Mutex

// Acquire packs typescript@version with npm into a private staging directory,
// unpacks it there, moves the package into WorkDir and checks that lib/tsc.js
// exists.
func (a Acquirer) Acquire(ctx context.Context, version string) (*Compiler, error) {
	logger := ctxlog.FromContext(ctx)

	// npm pack writes into its working directory and each tarball unpacks
	// into "package/", so concurrent acquisitions must not share one
	staging, err := os.MkdirTemp(a.WorkDir, ".unpack-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	res, err := proc.RunChecked(ctx, proc.Command{
		Dir:  staging,
		Name: orDefault(a.NPM, "npm"),
		Args: []string{"pack", "typescript@" + version, "--quiet"},
	})
	if err != nil {
		return nil, fmt.Errorf("npm pack typescript@%s: %w", version, err)
	}
	tarName := lastLine(res.Output)

	m := tarballName.FindStringSubmatch(tarName)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrTarballName, tarName)
	}
	dirName, resolved := m[1], m[2]

	if _, err := proc.RunChecked(ctx, proc.Command{
		Dir:  staging,
		Name: orDefault(a.Tar, "tar"),
		Args: []string{"xf", tarName},
	}); err != nil {
		return nil, fmt.Errorf("extract %s: %w", tarName, err)
	}

	dir := filepath.Join(a.WorkDir, dirName)
	tsc, err := install(filepath.Join(staging, "package"), dir)
	if err != nil {
		return nil, err
	}

	logger.Info("compiler ready", "requested", version, "version", resolved, "tsc", tsc)
	return &Compiler{Requested: version, Version: resolved, Dir: dir, TSC: tsc}, nil
}

func install(pkg, dir string) (string, error) {
	installMu.Lock()
	defer installMu.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.Rename(pkg, dir); err != nil {
		return "", fmt.Errorf("move package to %s: %w", dir, err)
	}
	tsc := filepath.Join(dir, "lib", "tsc.js")
	if info, err := os.Stat(tsc); err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrMissingTSC, tsc)
	}
	return tsc, nil
}

// AcquireBoth fetches the old and new releases concurrently.
func (a Acquirer) AcquireBoth(ctx context.Context, oldVersion, newVersion string) (oldC, newC *Compiler, err error) {
	if oldVersion == newVersion {
		c, err := a.Acquire(ctx, oldVersion)
		return c, c, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := a.Acquire(gctx, oldVersion)
		oldC = c
		return err
	})
	g.Go(func() error {
		c, err := a.Acquire(gctx, newVersion)
		newC = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return oldC, newC, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
