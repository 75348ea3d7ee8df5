package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/go-github/v68/github"
	"github.com/spf13/cobra"

	"errdeltas/internal/compiler"
	"errdeltas/internal/config"
	"errdeltas/internal/ctxlog"
	"errdeltas/internal/install"
	"errdeltas/internal/orchestrator"
	"errdeltas/internal/report"
	"errdeltas/internal/repos"
	"errdeltas/internal/runner"
	"errdeltas/internal/scratch"
)

var errRepoCount = errors.New("repo_count must be a positive integer")

// runArgs are the positional arguments of the root command.
type runArgs struct {
	count      int
	oldVersion string
	newVersion string
	fileIssue  bool
}

func parseRunArgs(args []string) (runArgs, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n <= 0 {
		return runArgs{}, fmt.Errorf("%w, got %q", errRepoCount, args[0])
	}
	return runArgs{
		count:      n,
		oldVersion: args[1],
		newVersion: args[2],
		fileIssue:  parseFileIssue(args[3]),
	}, nil
}

// parseFileIssue is false only for "false"; anything else files the issue.
func parseFileIssue(s string) bool {
	return !strings.EqualFold(strings.TrimSpace(s), "false")
}

func runRoot(cmd *cobra.Command, args []string) error {
	ra, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	flags := cmd.Root().PersistentFlags()
	colorFlag, _ := flags.GetString("color")
	if err := applyColor(colorFlag); err != nil {
		return err
	}
	uiFlag, _ := flags.GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	useTUI := shouldUseTUI(mode)

	cfgPath, _ := flags.GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cmd, useTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	tracer, cleanupTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanupTrace()
	ctx = ctxlog.WithLogger(cmd.Context(), logger)

	err = hunt(ctx, cmd, cfg, ra, useTUI)
	if err != nil {
		logger.Error("run failed", "err", err)
		dumpRing(cmd, tracer)
	}
	return err
}

// applyRunFlags lets command-line flags override the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if n, _ := cmd.Flags().GetInt("max-diagnostics"); n >= 0 {
		cfg.Run.MaxDiagnostics = n
	}
	if p, _ := cmd.Flags().GetString("archive"); p != "" {
		cfg.Archive.Path = p
	}
	if cmd.Flags().Changed("allow-partial-graph") {
		cfg.Run.AllowPartialGraph, _ = cmd.Flags().GetBool("allow-partial-graph")
	}
	return cfg.Validate()
}

// newLogger writes to --log-file, or stdout. With the progress UI on stdout
// and no log file, logs are dropped.
func newLogger(cmd *cobra.Command, useTUI bool) (*slog.Logger, func(), error) {
	flags := cmd.Root().PersistentFlags()
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	path, _ := flags.GetString("log-file")

	if path == "" {
		if useTUI {
			return ctxlog.Discard(), func() {}, nil
		}
		return ctxlog.New(level, format, cmd.OutOrStdout()), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return ctxlog.New(level, format, f), func() { _ = f.Close() }, nil
}

// hunt acquires both compilers, runs every repository and reports.
func hunt(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ra runArgs, useTUI bool) error {
	logger := ctxlog.FromContext(ctx)
	out := cmd.OutOrStdout()

	workDir, err := filepath.Abs(cfg.Compiler.WorkDir)
	if err != nil {
		return err
	}
	acq := compiler.Acquirer{WorkDir: workDir}
	oldC, newC, err := acq.AcquireBoth(ctx, ra.oldVersion, ra.newVersion)
	if err != nil {
		return err
	}

	ws := &scratch.Workspace{
		Dir:   cfg.Scratch.Dir,
		Size:  cfg.Scratch.Size,
		Mount: cfg.Scratch.Mount,
		Sudo:  cfg.Scratch.Sudo,
	}
	if err := ws.Init(ctx); err != nil {
		return fmt.Errorf("scratch: %w", err)
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	var archive *report.Archive
	if cfg.Archive.Path != "" {
		archive, err = report.CreateArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
	}

	deps := orchestrator.Deps{
		Source:    source,
		Cloner:    repos.Cloner{},
		Installer: install.Installer{IgnoreScripts: cfg.Run.IgnoreScripts},
		Builder: runner.New(runner.Options{
			AllowPartialGraph: cfg.Run.AllowPartialGraph,
			MaxDiagnostics:    cfg.Run.MaxDiagnostics,
		}),
		Workspace: ws,
	}
	if archive != nil {
		deps.Archive = archive
	}
	if ra.fileIssue {
		filer, err := report.NewGitHubFiler(nil, cfg.Token, cfg.Issue.Repo)
		if err != nil {
			return err
		}
		deps.Filer = filer
	}
	ocfg := orchestrator.Config{
		Count:    ra.count,
		Old:      oldC,
		New:      newC,
		Timeout:  cfg.Run.Timeout.Duration,
		Denylist: cfg.Run.Denylist,
	}

	var (
		run     *orchestrator.Runner
		summary *orchestrator.Summary
	)
	if useTUI {
		title := fmt.Sprintf("errdeltas %s vs %s", newC.Version, oldC.Version)
		run, summary, err = runWithUI(ctx, title, func(sink orchestrator.ProgressSink) *orchestrator.Runner {
			d := deps
			d.Sink = sink
			return orchestrator.New(ocfg, d)
		})
	} else {
		run = orchestrator.New(ocfg, deps)
		summary, err = run.Run(ctx)
	}

	if archive != nil {
		if cerr := archive.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close archive: %w", cerr))
		}
	}
	if err != nil {
		return err
	}

	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		printRepoTimings(out, summary)
	}

	if archive != nil && cfg.Archive.S3Bucket != "" {
		if err := uploadArchive(ctx, cfg, archive.Path(), newC.Version, oldC.Version); err != nil {
			logger.Warn("archive upload failed", "err", err)
		}
	}

	if !ra.fileIssue {
		logger.Info("dry run, not filing an issue", "new_errors", summary.SawNewErrors)
		if summary.SawNewErrors {
			_, err := io.WriteString(out, summary.Text)
			return err
		}
		return nil
	}
	filed, err := run.File(ctx, summary)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "filed %s\n", filed.URL)
	return nil
}

func newSource(cfg *config.Config) (repos.Source, error) {
	if cfg.StaticRepos {
		return cfg.StaticSource()
	}
	return repos.NewGitHubSource(github.NewClient(nil), cfg.Token, cfg.Run.Query), nil
}

func uploadArchive(ctx context.Context, cfg *config.Config, path, newVersion, oldVersion string) error {
	up, err := report.NewS3Uploader(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix, cfg.Archive.S3Region, cfg.Archive.S3Endpoint)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-vs-%s-%s", newVersion, oldVersion, filepath.Base(path))
	if err := up.Upload(ctx, path, name); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("archive uploaded", "bucket", cfg.Archive.S3Bucket, "key", up.Key(name))
	return nil
}
