// Package runner provides a safe boundary around external processes: every
// call returns a Result, whether the command succeeds, exits non-zero, runs
// past its deadline or cannot be started at all.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout applies when Options.Timeout is not positive.
const DefaultTimeout = 30 * time.Second

// TimeoutMessage is the Stderr of every timed-out run. Callers match on it,
// so it must not change.
const TimeoutMessage = "Command timed out"

// waitDelay bounds how long Wait keeps draining pipes after the process
// group has been killed or the main process has exited.
const waitDelay = 2 * time.Second

// errEmptyCommand is reported when there is nothing to execute.
var errEmptyCommand = errors.New("empty command")

// Options control a single Execute call. The zero value runs string
// commands through the shell with the default timeout, the inherited
// environment and the current directory.
type Options struct {
	Timeout time.Duration     // upper bound on wall-clock time; <= 0 means DefaultTimeout
	NoShell bool              // execute shell lines literally instead of through the shell
	Env     map[string]string // merged over the inherited environment
	Dir     string            // working directory override
}

// Runner executes commands. The zero value is ready to use.
type Runner struct {
	// Shell is the interpreter prefix for shell lines, e.g. {"/bin/sh", "-c"}.
	// Empty means the platform default.
	Shell []string

	// Workspace, when set, bounds the working directory: relative Dir values
	// resolve against it and the result must stay inside it.
	Workspace string

	// MaxOutput caps each captured stream in bytes. Zero means unbounded.
	MaxOutput int
}

// Execute runs c with a zero-value Runner.
func Execute(ctx context.Context, c Command, opts Options) Result {
	return (&Runner{}).Execute(ctx, c, opts)
}

// Execute runs c to completion or until its deadline and reports the
// outcome. It never panics and never returns an error; all failures are
// encoded in the Result.
func (r *Runner) Execute(ctx context.Context, c Command, opts Options) (res Result) {
	runID := uuid.New().String()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res = launchFailure(runID, start, fmt.Errorf("executor panic: %v", p))
		}
	}()

	argv, err := r.argv(c, opts.NoShell)
	if err != nil {
		return launchFailure(runID, start, err)
	}

	dir, err := r.resolveDir(opts.Dir)
	if err != nil {
		return launchFailure(runID, start, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), opts.Env)
	cmd.WaitDelay = waitDelay
	setupProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: r.MaxOutput}
	errW := &limitWriter{buf: &stderr, limit: r.MaxOutput}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		if ctxRes, ok := contextFailure(execCtx, runID, start); ok {
			return ctxRes
		}
		return launchFailure(runID, start, err)
	}
	waitErr := cmd.Wait()

	res = Result{
		Stdout:    decode(stdout.Bytes()),
		Stderr:    decode(stderr.Bytes()),
		RunID:     runID,
		ExitCode:  -1,
		Duration:  time.Since(start),
		Truncated: outW.truncated || errW.truncated,
	}

	// A successful exit whose pipes outlived WaitDelay still counts as success.
	exitedOK := waitErr == nil ||
		(errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success())
	if exitedOK {
		res.Success = true
		res.Status = Succeeded
		res.ExitCode = 0
		return res
	}

	if ctxRes, ok := contextFailure(execCtx, runID, start); ok {
		return ctxRes
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		res.Status = Failed
		res.ExitCode = exitErr.ExitCode()
		return res
	}

	return launchFailure(runID, start, waitErr)
}

// argv builds the process argument vector for c.
func (r *Runner) argv(c Command, noShell bool) ([]string, error) {
	if c.IsArgv() {
		if len(c.argv) == 0 || c.argv[0] == "" {
			return nil, errEmptyCommand
		}
		return c.argv, nil
	}

	if strings.TrimSpace(c.line) == "" {
		return nil, errEmptyCommand
	}
	if noShell {
		return strings.Fields(c.line), nil
	}

	shell := r.Shell
	if len(shell) == 0 {
		shell = defaultShell
	}
	argv := make([]string, 0, len(shell)+1)
	argv = append(argv, shell...)
	return append(argv, c.line), nil
}

// resolveDir resolves dir against the workspace and validates it is within
// the workspace boundary. Without a workspace dir is used as given.
func (r *Runner) resolveDir(dir string) (string, error) {
	if r.Workspace == "" {
		return dir, nil
	}
	if dir == "" {
		return r.Workspace, nil
	}

	var resolved string
	if filepath.IsAbs(dir) {
		resolved = filepath.Clean(dir)
	} else {
		resolved = filepath.Clean(filepath.Join(r.Workspace, dir))
	}

	rel, err := filepath.Rel(r.Workspace, resolved)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", dir, r.Workspace)
	}
	return resolved, nil
}

// contextFailure maps an expired or canceled execution context to a result.
// A deadline, whether ours or the caller's, is a timeout.
func contextFailure(ctx context.Context, runID string, start time.Time) (Result, bool) {
	err := ctx.Err()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Result{
			Stderr:   TimeoutMessage,
			RunID:    runID,
			Status:   TimedOut,
			ExitCode: -1,
			Duration: time.Since(start),
		}, true
	case errors.Is(err, context.Canceled):
		return Result{
			Stderr:   err.Error(),
			RunID:    runID,
			Status:   Failed,
			ExitCode: -1,
			Duration: time.Since(start),
		}, true
	}
	return Result{}, false
}

func launchFailure(runID string, start time.Time, err error) Result {
	return Result{
		Stderr:   err.Error(),
		RunID:    runID,
		Status:   LaunchError,
		ExitCode: -1,
		Duration: time.Since(start),
	}
}

// mergeEnv copies base and overlays env on it. Overlaid keys replace
// inherited entries rather than duplicating them.
func mergeEnv(base []string, env map[string]string) []string {
	if len(env) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(env))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := env[key]; ok {
			continue
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+env[k])
	}
	return merged
}

// decode converts captured bytes to text, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// limitWriter writes up to limit bytes to buf, then silently discards the
// rest. A limit of zero disables the cap.
type limitWriter struct {
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
