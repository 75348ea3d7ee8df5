// Package proc runs external tools under a deadline. When the deadline
// expires the whole process group of the child is killed, so compilers and
// package managers that fork helpers do not outlive the step.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"errdeltas/internal/ctxlog"
)

var ErrTimeout = errors.New("timed out")

// killGrace bounds how long Wait blocks on pipes held open by orphaned
// grandchildren after the group was killed.
const killGrace = 10 * time.Second

// Command describes one child process.
type Command struct {
	Dir  string
	Name string
	Args []string
	Env  map[string]string // overlays the parent environment
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished child left behind.
type Result struct {
	Output   string // stdout and stderr, interleaved
	ExitCode int
	Elapsed  time.Duration
}

// ExitError reports a child that ran to completion with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Output  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, msg)
}

// Run starts c and waits for it. A non-zero exit status is not an error: it
// is reported in Result.ExitCode. Errors are start failures and context
// expiry; expiry by deadline wraps ErrTimeout.
func Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.Env)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = killGrace
	killGroupOnCancel(cmd)

	logger := ctxlog.FromContext(ctx)
	logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.String(), Elapsed: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: %w", c, ErrTimeout)
		}
		return res, fmt.Errorf("%s: %w", c, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("run %s: %w", c, err)
	}
	logger.Debug("exec done", "cmd", c.Name, "exit", res.ExitCode, "elapsed", res.Elapsed)
	return res, nil
}

// RunChecked is Run that also treats a non-zero exit status as an *ExitError.
func RunChecked(ctx context.Context, c Command) (Result, error) {
	res, err := Run(ctx, c)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Command: c.String(), Code: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

// WithTimeout runs fn under a deadline of d. When the deadline fires before
// fn returns successfully the error wraps ErrTimeout. d <= 0 disables it.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, d, err)
	}
	return v, err
}

func mergeEnv(base []string, overlay map[string]string) []string {
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, replaced := overlay[name]; replaced {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}
