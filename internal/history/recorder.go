package history

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/deixis/execkit/runner"
	"go.uber.org/zap"
)

// Executor runs one command. Implemented by *runner.Runner.
type Executor interface {
	Execute(ctx context.Context, c runner.Command, opts runner.Options) runner.Result
}

// Recorder runs commands and records each one in a Log and, when set, a
// Store. Recording never alters the result returned to the caller.
type Recorder struct {
	Exec   Executor
	Log    *Log
	Store  Store       // optional
	Logger *zap.Logger // optional

	now func() time.Time
}

// NewRecorder returns a Recorder with a fresh Log.
func NewRecorder(exec Executor, store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		Exec:   exec,
		Log:    &Log{},
		Store:  store,
		Logger: logger,
	}
}

// Run executes c and records the outcome.
func (r *Recorder) Run(ctx context.Context, c runner.Command, opts runner.Options) (runner.Result, *Record) {
	logger := r.logger()
	display := c.String()
	at := r.clock()

	logger.Debug("executing command",
		zap.String("command", display),
		zap.Bool("argv", c.IsArgv()),
		zap.Duration("timeout", opts.Timeout),
		zap.String("dir", opts.Dir),
		zap.Strings("env", envKeys(opts.Env)))

	res := r.Exec.Execute(ctx, c, opts)
	rec := NewRecord(display, res, at)

	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.String("command", display),
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	}
	if res.Success {
		logger.Info("command finished", fields...)
	} else {
		logger.Warn("command failed", append(fields, zap.String("stderr", firstLine(res.Stderr)))...)
	}

	if r.Log != nil {
		r.Log.Append(rec)
	}
	if r.Store != nil {
		if err := r.Store.Save(rec); err != nil {
			logger.Warn("saving history record", zap.String("run_id", rec.ID), zap.Error(err))
		}
	}
	return res, rec
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Recorder) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// envKeys lists overlay keys only; values may be credentials.
func envKeys(env map[string]string) []string {
	return slices.Sorted(maps.Keys(env))
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
