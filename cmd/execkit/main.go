// Command execkit runs external commands behind a uniform result contract
// and serves the executor over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deixis/execkit"
	"github.com/deixis/execkit/internal/config"
	"github.com/deixis/execkit/internal/history"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "execkit: %v\n", err)
	os.Exit(2)
}

// exitError carries a process exit code without an error message; the
// command has already reported the failure.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds state shared by every subcommand.
type app struct {
	verbose bool
	timeout time.Duration

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "execkit",
		Short: "Run external commands with timeouts and structured results",
		Long: `execkit runs shell lines and argument vectors with a bounded timeout and
reports success, stdout and stderr instead of failing on non-zero exits.

Configuration is read from .execkit at the repository root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "override configured timeout (e.g. 2m)")

	root.AddCommand(
		a.newRunCmd(),
		a.newPresetCmd(),
		a.newPresetsCmd(),
		a.newHistoryCmd(),
		a.newInspectCmd(),
		a.newMCPCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), execkit.Version)
			},
		},
	)
	return root
}

// initLogger builds the zap logger. The CLI logs warnings and errors to
// stderr unless verbose is set.
func (a *app) initLogger() error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger
	return nil
}

// env is the loaded configuration plus the directories it was resolved from.
type env struct {
	cfg       *config.Config
	workspace string
	repoRoot  string
}

func (a *app) loadEnv() (*env, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a.logger.Debug("config loaded",
		zap.String("workspace", workspace),
		zap.String("repo_root", loaded.RepoRoot),
		zap.Duration("timeout", loaded.Config.Timeout()),
		zap.Int("presets", len(loaded.Config.Presets)))
	return &env{cfg: loaded.Config, workspace: workspace, repoRoot: loaded.RepoRoot}, nil
}

// historyDir returns where run records are kept: the configured directory
// (relative paths resolve against the repository root), else the user
// cache directory, else "" for a temp directory.
func (e *env) historyDir() string {
	if dir := e.cfg.History.Dir; dir != "" {
		return e.cfg.ResolveDir(dir)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "execkit", "runs")
}

func (e *env) diskStore() *history.DiskStore {
	return history.NewDiskStore(e.historyDir())
}
