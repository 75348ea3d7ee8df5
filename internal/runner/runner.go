// Package runner builds every entry point of a checkout with one compiler
// version and collects the diagnostics per project.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"errdeltas/internal/compiler"
	"errdeltas/internal/ctxlog"
	"errdeltas/internal/diag"
	"errdeltas/internal/proc"
	"errdeltas/internal/project"
	"errdeltas/internal/repos"
	"errdeltas/internal/trace"
)

// scriptCompiler is how build scripts refer to the compiler entry point of a
// compiler checkout.
var scriptCompiler = regexp.MustCompile(`\$\{?TS\}?/built/local/tsc\.js`)

// Options tune a Runner.
type Options struct {
	// AllowPartialGraph builds the healthy part of a graph that has structural
	// errors instead of reporting a configuration failure.
	AllowPartialGraph bool
	// MaxDiagnostics caps the diagnostics kept per project; 0 is unlimited.
	MaxDiagnostics int
	Node           string // node binary, "node" when empty
	Shell          string // shell for build scripts, "sh" when empty
}

// Runner runs the compiler over project graphs.
type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	if opts.Node == "" {
		opts.Node = "node"
	}
	if opts.Shell == "" {
		opts.Shell = "sh"
	}
	return &Runner{opts: opts}
}

// build is the state of one Build call.
type build struct {
	*Runner
	graph    *project.Graph
	compiler *compiler.Compiler
	blobBase string
	logger   *slog.Logger
}

// Build discovers the projects under dir, compiles each entry point with c
// and returns their diagnostics. blobBase prefixes the file and project
// links. Errors are discovery IO failures, processes that could not start
// and context expiry; compiler failures are data in the result.
func (r *Runner) Build(ctx context.Context, dir string, c *compiler.Compiler, blobBase string) (*diag.RepoErrors, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := project.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("discover projects in %s: %w", dir, err)
	}

	if g.HasError() {
		for _, d := range g.Errored() {
			logger.Warn("project graph error", "project", g.Rel(d.Path), "status", d.Status.String())
		}
		if !r.opts.AllowPartialGraph {
			return &diag.RepoErrors{HasConfigFailure: true}, nil
		}
	}

	b := &build{Runner: r, graph: g, compiler: c, blobBase: blobBase, logger: logger}
	plan := g.BuildOrder()
	if len(plan.Cyclic) > 0 {
		logger.Warn("reference cycle between entry points", "count", len(plan.Cyclic))
	}

	out := &diag.RepoErrors{Projects: make([]diag.ProjectErrors, 0, len(plan.Configs)+len(plan.Scripts))}
	for _, d := range plan.Configs {
		var (
			pe  diag.ProjectErrors
			err error
		)
		if d.IsComposite {
			pe, err = b.composite(ctx, d)
		} else {
			pe, err = b.simple(ctx, d)
		}
		if err != nil {
			return nil, err
		}
		out.Projects = append(out.Projects, pe)
	}
	for _, d := range plan.Scripts {
		pe, err := b.script(ctx, d)
		if err != nil {
			return nil, err
		}
		out.Projects = append(out.Projects, pe)
	}

	logger.Info("build finished", "compiler", c.Version, "projects", len(out.Projects), "failed", out.NumFailed())
	return out, nil
}

// simple runs tsc -p for a config that is not composite.
func (b *build) simple(ctx context.Context, d *project.Descriptor) (diag.ProjectErrors, error) {
	url := b.projectURL(d.Path)
	res, err := b.exec(ctx, "tsc -p", proc.Command{
		Dir:  d.Dir(),
		Name: b.opts.Node,
		Args: []string{b.compiler.TSC, "-p", d.Path, "--skipLibCheck", "--incremental", "false", "--pretty", "false"},
	})
	if err != nil {
		return diag.ProjectErrors{}, err
	}
	c := b.newCollector(d.Dir(), url)
	c.feed(res.Output, false)
	return c.result(url, false, res.ExitCode), nil
}

// composite runs tsc -b for a root composite. Diagnostics are attributed to
// the project tsc announced last.
func (b *build) composite(ctx context.Context, d *project.Descriptor) (diag.ProjectErrors, error) {
	url := b.projectURL(d.Path)
	res, err := b.exec(ctx, "tsc -b", proc.Command{
		Dir:  d.Dir(),
		Name: b.opts.Node,
		Args: []string{b.compiler.TSC, "-b", d.Path, "--verbose", "--pretty", "false"},
	})
	if err != nil {
		return diag.ProjectErrors{}, err
	}
	c := b.newCollector(d.Dir(), url)
	c.feed(res.Output, true)
	return c.result(url, true, res.ExitCode), nil
}

// script runs a build.sh with the compiler checkout exposed as $TS.
func (b *build) script(ctx context.Context, d *project.Descriptor) (diag.ProjectErrors, error) {
	url := b.projectURL(d.Path)
	text := scriptCompiler.ReplaceAllLiteralString(d.Contents, b.compiler.TSC)
	res, err := b.exec(ctx, "build.sh", proc.Command{
		Dir:  d.Dir(),
		Name: b.opts.Shell,
		Args: []string{"-c", text},
		Env: map[string]string{
			"TS":   b.compiler.Dir,
			"PATH": filepath.Join(b.compiler.Dir, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
		},
	})
	if err != nil {
		return diag.ProjectErrors{}, err
	}
	c := b.newCollector(d.Dir(), url)
	c.feed(res.Output, false)
	return c.result(url, false, res.ExitCode), nil
}

func (b *build) exec(ctx context.Context, name string, cmd proc.Command) (proc.Result, error) {
	_, span := trace.Start(ctx, trace.ScopeProject, name)
	span.Set("project", b.graph.Rel(cmd.Dir))
	res, err := proc.Run(ctx, cmd)
	if err != nil {
		span.Fail(err)
		return res, err
	}
	span.End(fmt.Sprintf("exit %d", res.ExitCode))
	return res, nil
}

func (b *build) projectURL(path string) string {
	return repos.BlobURL(b.blobBase, b.graph.Rel(path), 0)
}

// fileURL links a diagnostic file. Files outside the checkout get no link.
func (b *build) fileURL(cwd string, d *diag.Diagnostic) {
	abs := d.File
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	rel, err := filepath.Rel(b.graph.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		d.File = filepath.ToSlash(abs)
		return
	}
	d.File = filepath.ToSlash(rel)
	d.FileURL = repos.BlobURL(b.blobBase, d.File, d.Line)
}
