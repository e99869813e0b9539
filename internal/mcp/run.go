package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/deixis/execkit/internal/config"
	"github.com/deixis/execkit/internal/history"
	"github.com/deixis/execkit/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type runParams struct {
	Command        string            `json:"command,omitempty" jsonschema:"shell line to execute (e.g. docker ps -a | head). Mutually exclusive with argv."`
	Argv           []string          `json:"argv,omitempty" jsonschema:"argument vector invoked without a shell (e.g. [kubectl, get, pods]). Mutually exclusive with command."`
	TimeoutSeconds float64           `json:"timeout_seconds,omitempty" jsonschema:"upper bound on execution time in seconds. Defaults to the configured timeout."`
	UseShell       *bool             `json:"use_shell,omitempty" jsonschema:"interpret command through the shell. Default: true. Ignored for argv."`
	Env            map[string]string `json:"env,omitempty" jsonschema:"environment variables merged over the inherited environment (e.g. AWS_DEFAULT_REGION)."`
	Cwd            string            `json:"cwd,omitempty" jsonschema:"working directory, absolute or relative to the workspace."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	c, err := params.command()
	if err != nil {
		return errorResult(err.Error())
	}

	timeout, err := timeoutFromSeconds(params.TimeoutSeconds)
	if err != nil {
		return errorResult(err.Error())
	}

	cfg, workspace := h.snapshot()
	opts := cfg.BaseOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if params.UseShell != nil {
		opts.NoShell = !*params.UseShell
	}
	for k, v := range params.Env {
		if opts.Env == nil {
			opts.Env = make(map[string]string, len(params.Env))
		}
		opts.Env[k] = v
	}
	opts.Dir = resolveCwd(workspace, params.Cwd)

	_, rec := h.recorder.Run(ctx, c, opts)
	return recordResult(rec)
}

func (p runParams) command() (runner.Command, error) {
	switch {
	case p.Command != "" && len(p.Argv) > 0:
		return runner.Command{}, errors.New("pass either command or argv, not both")
	case len(p.Argv) > 0:
		return runner.Args(p.Argv...), nil
	case strings.TrimSpace(p.Command) != "":
		return runner.Shell(p.Command), nil
	}
	return runner.Command{}, errors.New("command or argv is required")
}

// timeoutFromSeconds converts timeout_seconds; zero selects the configured
// timeout.
func timeoutFromSeconds(secs float64) (time.Duration, error) {
	if secs == 0 {
		return 0, nil
	}
	if secs < 0 || math.IsNaN(secs) {
		return 0, fmt.Errorf("timeout_seconds must be positive, got %v", secs)
	}
	ns := secs * float64(time.Second)
	if ns >= math.MaxInt64 {
		return 0, fmt.Errorf("timeout_seconds %v is too large", secs)
	}
	d := time.Duration(ns)
	if d <= 0 {
		return 0, fmt.Errorf("timeout_seconds %v is below the 1ns resolution", secs)
	}
	return d, nil
}

type presetParams struct {
	Name string `json:"name" jsonschema:"preset name from the .execkit configuration"`
}

func (h *handler) presetHandler(ctx context.Context, req *mcp.CallToolRequest, params presetParams) (*mcp.CallToolResult, any, error) {
	cfg, workspace := h.snapshot()
	p, err := cfg.Preset(params.Name)
	if err != nil {
		if errors.Is(err, config.ErrUnknownPreset) && len(cfg.Presets) > 0 {
			return errorResult(fmt.Sprintf("%v (available: %s)", err, strings.Join(cfg.PresetNames(), ", ")))
		}
		return errorResult(err.Error())
	}

	opts := cfg.PresetOptions(p)
	opts.Dir = resolveCwd(workspace, opts.Dir)

	_, rec := h.recorder.Run(ctx, p.Command(), opts)
	return recordResult(rec)
}

type presetsParams struct{}

func (h *handler) presetsHandler(ctx context.Context, req *mcp.CallToolRequest, _ presetsParams) (*mcp.CallToolResult, any, error) {
	cfg, _ := h.snapshot()
	names := cfg.PresetNames()
	if len(names) == 0 {
		return textResult("No presets configured. Add a presets section to .execkit.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Presets (%d):\n", len(names))
	for _, name := range names {
		p := cfg.Presets[name]
		fmt.Fprintf(&b, "  %s: %s", name, p.Command())
		if p.Description != "" {
			fmt.Fprintf(&b, " (%s)", p.Description)
		}
		fmt.Fprintln(&b)
	}
	return textResult(b.String())
}

// resolveCwd anchors a relative working directory at the workspace. The
// runner enforces the workspace bound separately when configured.
func resolveCwd(workspace, cwd string) string {
	switch {
	case cwd == "":
		return workspace
	case filepath.IsAbs(cwd) || workspace == "":
		return cwd
	}
	return filepath.Join(workspace, cwd)
}

// recordResult renders a run; unsuccessful commands are tool errors.
func recordResult(rec *history.Record) (*mcp.CallToolResult, any, error) {
	text := formatRecord(rec)
	if !rec.Success {
		return errorResult(text)
	}
	return textResult(text)
}
