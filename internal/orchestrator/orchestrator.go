// Package orchestrator runs the regression hunt: every repository is
// cloned, installed and built with both compilers, one at a time, and the
// new diagnostics are collected into one summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"errdeltas/internal/compiler"
	"errdeltas/internal/ctxlog"
	"errdeltas/internal/diag"
	"errdeltas/internal/diff"
	"errdeltas/internal/observ"
	"errdeltas/internal/proc"
	"errdeltas/internal/prof"
	"errdeltas/internal/report"
	"errdeltas/internal/repos"
	"errdeltas/internal/trace"
)

// DefaultDenylist holds repositories that cannot be tested: storybook does
// not fit the scratch disk and frontend-bootcamp cannot be built twice in a
// row.
var DefaultDenylist = []string{
	"https://github.com/storybookjs/storybook",
	"https://github.com/microsoft/frontend-bootcamp",
}

// DefaultTimeout bounds every external step of a repository.
const DefaultTimeout = 10 * time.Minute

type Cloner interface {
	CloneIfAbsent(ctx context.Context, parent string, repo repos.Repo) (*repos.Checkout, error)
}

type Installer interface {
	Install(ctx context.Context, dir string) error
}

type Builder interface {
	Build(ctx context.Context, dir string, c *compiler.Compiler, blobBase string) (*diag.RepoErrors, error)
}

// Workspace is the scratch disk repositories are cloned into.
type Workspace interface {
	Root() string
	Prepare(ctx context.Context) error
	Release(ctx context.Context) error
	ReportUsage(ctx context.Context)
}

type Filer interface {
	File(ctx context.Context, issue report.Issue) (*report.Filed, error)
}

type Archive interface {
	Append(v any) error
}

// Config fixes what a run does.
type Config struct {
	Count    int
	Old      *compiler.Compiler
	New      *compiler.Compiler
	Timeout  time.Duration // per step; 0 means DefaultTimeout
	Denylist []string      // repository URLs; nil means DefaultDenylist
}

// Deps are the collaborators of a run. Filer, Archive and Sink are optional.
type Deps struct {
	Source    repos.Source
	Cloner    Cloner
	Installer Installer
	Builder   Builder
	Workspace Workspace
	Filer     Filer
	Archive   Archive
	Sink      ProgressSink
}

// Runner processes repositories sequentially.
type Runner struct {
	cfg    Config
	deps   Deps
	denied map[string]struct{}
}

func New(cfg Config, deps Deps) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	denied := make(map[string]struct{}, len(cfg.Denylist))
	for _, u := range cfg.Denylist {
		denied[strings.TrimSuffix(u, "/")] = struct{}{}
	}
	return &Runner{cfg: cfg, deps: deps, denied: denied}
}

// Run processes every repository the source yields. Per-repository failures
// are logged and recorded in the outcome; the error is reserved for failures
// that make further repositories pointless (no repository list, broken
// scratch disk, cancelled context).
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)
	ctx, span := trace.Start(ctx, trace.ScopeRun, "run")
	defer span.End("")

	logger.Info("compilers", "old", r.cfg.Old.Version, "new", r.cfg.New.Version)

	list, err := r.deps.Source.Repos(ctx, r.cfg.Count)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	s := &Summary{
		OldVersion: r.cfg.Old.Version,
		NewVersion: r.cfg.New.Version,
		Outcomes:   make([]RepoOutcome, 0, len(list)),
	}
	for i, repo := range list {
		r.deps.Sink.OnEvent(Event{Index: i + 1, Total: len(list), Repo: repo.FullName(), Status: StatusQueued})
	}

	var text strings.Builder
	n := 0
	for i, repo := range list {
		if _, ok := r.denied[strings.TrimSuffix(repo.URL, "/")]; ok {
			logger.Info("skipping denylisted repository", "repo", repo.URL)
			out := RepoOutcome{Repo: repo, Result: ResultDenied}
			r.deps.Sink.OnEvent(Event{Index: i + 1, Total: len(list), Repo: repo.FullName(), Status: StatusSkipped, Detail: "denylisted"})
			r.record(ctx, s, &out)
			continue
		}
		n++

		var (
			out RepoOutcome
			err error
		)
		prof.Do(ctx, repo.FullName(), func(ctx context.Context) {
			out, err = r.repo(ctx, repoRun{n: n, index: i + 1, total: len(list), repo: repo})
		})
		r.deps.Sink.OnEvent(Event{
			Index:  i + 1,
			Total:  len(list),
			Repo:   repo.FullName(),
			Status: finalStatus(&out),
			Detail: string(out.Result),
		})
		if out.Reported() {
			s.SawNewErrors = true
			text.WriteString(out.Markdown)
		}
		r.record(ctx, s, &out)
		if err != nil {
			s.Text = text.String()
			return s, err
		}
		if err := ctx.Err(); err != nil {
			s.Text = text.String()
			return s, err
		}
	}

	s.Text = text.String()
	logger.Info("run finished",
		"repos", len(list),
		"compared", s.Count(ResultCompared),
		"reported", s.SawNewErrors)
	return s, nil
}

// File files the run report through the configured Filer.
func (r *Runner) File(ctx context.Context, s *Summary) (*report.Filed, error) {
	if r.deps.Filer == nil {
		return nil, errors.New("no issue filer configured")
	}
	ctxlog.FromContext(ctx).Info("creating a summary issue")
	return r.deps.Filer.File(ctx, report.NewIssue(s.OldVersion, s.NewVersion, s.Text, s.SawNewErrors))
}

func (r *Runner) record(ctx context.Context, s *Summary, out *RepoOutcome) {
	s.Outcomes = append(s.Outcomes, *out)
	if r.deps.Archive == nil {
		return
	}
	if err := r.deps.Archive.Append(out); err != nil {
		ctxlog.FromContext(ctx).Warn("could not archive outcome", "repo", out.Repo.URL, "err", err)
	}
}

type repoRun struct {
	n     int // counts repositories actually processed
	index int
	total int
	repo  repos.Repo

	logger *slog.Logger
	timer  *observ.Timer
	out    *RepoOutcome
}

func (rr *repoRun) event(stage Stage, status Status) Event {
	return Event{Index: rr.index, Total: rr.total, Repo: rr.repo.FullName(), Stage: stage, Status: status}
}

// repo processes one repository. The returned error is fatal to the run.
func (r *Runner) repo(ctx context.Context, rr repoRun) (out RepoOutcome, fatal error) {
	out = RepoOutcome{Repo: rr.repo}
	rr.out = &out
	rr.timer = observ.NewTimer()
	rr.logger = ctxlog.FromContext(ctx).With("repo", rr.repo.URL)
	ctx = ctxlog.WithLogger(ctx, rr.logger)

	ctx, span := trace.Start(ctx, trace.ScopeRepo, rr.repo.FullName())
	defer func() {
		out.Timings = rr.timer.Report()
		span.Set("result", string(out.Result)).End(out.Error)
	}()

	rr.logger.Info(fmt.Sprintf("Starting #%d: %s", rr.n, rr.repo.URL))

	if err := r.deps.Workspace.Prepare(ctx); err != nil {
		return out, fmt.Errorf("prepare scratch disk: %w", err)
	}
	defer func() {
		// cleanup must run even when the run is being cancelled
		cctx := context.WithoutCancel(ctx)
		rr.logger.Info("cleaning up repository")
		if err := r.deps.Workspace.Release(cctx); err != nil {
			fatal = errors.Join(fatal, fmt.Errorf("release scratch disk: %w", err))
		}
		r.deps.Workspace.ReportUsage(cctx)
	}()

	rr.logger.Info("cloning if absent")
	checkout, err := step(ctx, r, &rr, StageClone, func(ctx context.Context) (*repos.Checkout, error) {
		return r.deps.Cloner.CloneIfAbsent(ctx, r.deps.Workspace.Root(), rr.repo)
	})
	if err != nil {
		r.abandon(&rr, ResultCloneFailed, StageClone, "Error cloning "+rr.repo.URL, err)
		return out, nil
	}
	out.Commit = checkout.Commit

	rr.logger.Info("installing packages if absent")
	if _, err := step(ctx, r, &rr, StageInstall, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.deps.Installer.Install(ctx, checkout.Dir)
	}); err != nil {
		r.abandon(&rr, ResultInstallFailed, StageInstall, "Error installing packages for "+rr.repo.URL, err)
		return out, nil
	}

	base := checkout.BlobBase()

	rr.logger.Info("building with the old compiler", "tsc", r.cfg.Old.TSC)
	oldErrs, err := step(ctx, r, &rr, StageBuildOld, func(ctx context.Context) (*diag.RepoErrors, error) {
		return r.deps.Builder.Build(ctx, checkout.Dir, r.cfg.Old, base)
	})
	if err != nil {
		r.abandon(&rr, ResultBuildFailed, StageBuildOld, "Error building "+rr.repo.URL, err)
		return out, nil
	}

	verdict := diff.Precheck(oldErrs)
	out.NumProjects = verdict.NumProjects
	out.NumOldFailed = verdict.NumOldFailed
	switch verdict.Kind {
	case diff.VerdictOldGraphFailure:
		rr.logger.Info("unable to build project graph")
		r.skipNew(&rr, ResultOldGraphFailure)
		return out, nil
	case diff.VerdictAllOldFailed:
		r.skipNew(&rr, ResultAllOldFailed)
		return out, nil
	}
	if verdict.NumOldFailed > 0 {
		rr.logger.Info(fmt.Sprintf("%d of %d projects failed to build with the old tsc", verdict.NumOldFailed, verdict.NumProjects))
	}

	rr.logger.Info("building with the new compiler", "tsc", r.cfg.New.TSC)
	newErrs, err := step(ctx, r, &rr, StageBuildNew, func(ctx context.Context) (*diag.RepoErrors, error) {
		return r.deps.Builder.Build(ctx, checkout.Dir, r.cfg.New, base)
	})
	if err != nil {
		r.abandon(&rr, ResultBuildFailed, StageBuildNew, "Error building "+rr.repo.URL, err)
		return out, nil
	}

	rr.logger.Info("comparing errors")
	summary, _ := step(ctx, r, &rr, StageCompare, func(context.Context) (diff.RepoSummary, error) {
		return diff.Compare(rr.repo, oldErrs, newErrs), nil
	})
	logRegressions(rr.logger, &summary)

	out.Result = ResultCompared
	out.GraphFailure = summary.GraphFailure
	out.NewErrors = summary.NewErrorCount()
	if summary.SawNewErrors() {
		out.Markdown = summary.Markdown()
	}
	rr.logger.Info("Done " + rr.repo.URL)
	return out, nil
}

// step runs fn under the step timeout with progress, timing and a trace span.
func step[T any](ctx context.Context, r *Runner, rr *repoRun, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	r.deps.Sink.OnEvent(rr.event(stage, StatusWorking))
	ctx, span := trace.Start(ctx, trace.ScopeStep, string(stage))
	idx := rr.timer.Begin(string(stage))
	start := time.Now()

	v, err := proc.WithTimeout(ctx, r.cfg.Timeout, fn)

	ev := rr.event(stage, StatusDone)
	ev.Elapsed = time.Since(start)
	note := ""
	if err != nil {
		ev.Status = StatusError
		ev.Err = err
		note = "error"
		if errors.Is(err, proc.ErrTimeout) {
			note = "timeout"
		}
	}
	rr.timer.End(idx, note)
	if err != nil {
		span.Set("outcome", note).Fail(err)
	} else {
		span.End("")
	}
	r.deps.Sink.OnEvent(ev)
	return v, err
}

// abandon records a recoverable failure; the run moves on.
func (r *Runner) abandon(rr *repoRun, result Result, stage Stage, msg string, err error) {
	reportError(rr.logger, err, msg)
	rr.out.Result = result
	rr.out.Stage = stage
	rr.out.Error = proc.ReduceSpew(err.Error())
	rr.out.TimedOut = errors.Is(err, proc.ErrTimeout)
	for _, s := range Stages[stageIndex(stage)+1:] {
		r.deps.Sink.OnEvent(rr.event(s, StatusSkipped))
	}
}

func (r *Runner) skipNew(rr *repoRun, result Result) {
	rr.logger.Info("skipping build with the new compiler", "tsc", r.cfg.New.TSC, "reason", string(result))
	rr.out.Result = result
	for _, s := range []Stage{StageBuildNew, StageCompare} {
		r.deps.Sink.OnEvent(rr.event(s, StatusSkipped))
	}
}

// finalStatus is the repository-level status shown once all steps ran.
func finalStatus(out *RepoOutcome) Status {
	switch out.Result {
	case ResultCompared, ResultAllOldFailed, ResultOldGraphFailure:
		return StatusDone
	case ResultDenied:
		return StatusSkipped
	default:
		return StatusError
	}
}

func stageIndex(s Stage) int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return len(Stages) - 1
}

// reportError logs err with the npm disk-space warning collapsed.
func reportError(logger *slog.Logger, err error, msg string) {
	logger.Error(msg, "err", proc.ReduceSpew(err.Error()))
}

func logRegressions(logger *slog.Logger, s *diff.RepoSummary) {
	if s.GraphFailure {
		logger.Info("unable to build project graph with the new compiler")
		return
	}
	for i := range s.Projects {
		p := &s.Projects[i]
		logger.Info("new errors", "kind", p.Kind(), "project", p.ProjectURL, "count", p.Count)
		for _, g := range p.Groups {
			for _, loc := range g.Locations {
				at := loc.FileURL
				if at == "" {
					at = "project scope"
				}
				logger.Debug("new error", "code", loc.Code.String(), "at", at, "in", loc.ProjectURL, "text", g.Text)
			}
		}
	}
}
