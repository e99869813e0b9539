package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/deixis/execkit/internal/history"
	"github.com/deixis/execkit/runner"
	"github.com/spf13/cobra"
)

type runFlags struct {
	argv    bool
	noShell bool
	env     []string
	dir     string
	json    bool
}

func (a *app) newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] -- command...",
		Short: "Run one command",
		Long: `Run one command and print its output. Exits 1 if the command did not succeed.

Without --argv the arguments are joined into a shell line, so pipes and
$VARIABLES work. With --argv the arguments are invoked directly.

  execkit run -- 'docker ps -a | head -5'
  execkit run --argv -- kubectl get pods -n "$NS"
  execkit run --env AWS_DEFAULT_REGION=eu-west-1 -- aws ec2 describe-instances`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overlay, err := parseEnvFlags(f.env)
			if err != nil {
				return err
			}

			var c runner.Command
			if f.argv {
				c = runner.Args(args...)
			} else {
				c = runner.Shell(strings.Join(args, " "))
			}

			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			opts := e.cfg.BaseOptions()
			opts.NoShell = f.noShell
			opts.Dir = f.dir
			for k, v := range overlay {
				if opts.Env == nil {
					opts.Env = make(map[string]string, len(overlay))
				}
				opts.Env[k] = v
			}
			return a.execute(cmd, e, c, opts, f.json)
		},
	}
	cmd.Flags().BoolVar(&f.argv, "argv", false, "invoke the arguments directly instead of through the shell")
	cmd.Flags().BoolVar(&f.noShell, "no-shell", false, "execute the shell line literally, without shell interpretation")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&f.dir, "dir", "C", "", "working directory")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the run record as JSON")
	return cmd
}

func (a *app) newPresetCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "preset NAME",
		Short: "Run a preset command from .execkit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			p, err := e.cfg.Preset(args[0])
			if err != nil {
				return err
			}
			return a.execute(cmd, e, p.Command(), e.cfg.PresetOptions(p), jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run record as JSON")
	return cmd
}

func (a *app) newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List preset commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.loadEnv()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			names := e.cfg.PresetNames()
			if len(names) == 0 {
				fmt.Fprintln(w, "no presets configured")
				return nil
			}
			for _, name := range names {
				p := e.cfg.Presets[name]
				fmt.Fprintf(w, "%-15s %s\n", name, p.Command())
			}
			return nil
		},
	}
}

// execute runs c, records it and prints the outcome. An empty or relative
// dir is taken from the invocation directory; the workspace bound only
// rejects dirs outside the repository root.
func (a *app) execute(cmd *cobra.Command, e *env, c runner.Command, opts runner.Options, jsonOut bool) error {
	if a.timeout > 0 {
		opts.Timeout = a.timeout
	}
	switch {
	case opts.Dir == "":
		opts.Dir = e.workspace
	case !filepath.IsAbs(opts.Dir):
		opts.Dir = filepath.Join(e.workspace, opts.Dir)
	}

	rec := history.NewRecorder(e.cfg.NewRunner(e.repoRoot), e.diskStore(), a.logger)
	res, entry := rec.Run(cmd.Context(), c, opts)

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(entry); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	}

	if !res.Success {
		return exitError{code: 1}
	}
	return nil
}

// printResult writes the captured streams through and adds a status line
// to stderr when the run did not succeed.
func printResult(stdout, stderr io.Writer, res runner.Result) {
	fmt.Fprint(stdout, res.Stdout)
	fmt.Fprint(stderr, res.Stderr)
	if res.Success {
		return
	}
	if res.Stderr != "" && !strings.HasSuffix(res.Stderr, "\n") {
		fmt.Fprintln(stderr)
	}
	switch res.Status {
	case runner.Failed:
		fmt.Fprintf(stderr, "execkit: %s (exit %d, run %s)\n", res.Status, res.ExitCode, res.RunID)
	default:
		fmt.Fprintf(stderr, "execkit: %s (run %s)\n", res.Status, res.RunID)
	}
}

// parseEnvFlags turns KEY=VALUE flags into an overlay map.
func parseEnvFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(flags))
	for _, kv := range flags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}
