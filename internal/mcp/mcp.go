// Package mcp provides the execkit MCP server, exposing the command
// executor and the session history as tools.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/execkit"
	"github.com/deixis/execkit/internal/config"
	"github.com/deixis/execkit/internal/history"
	"github.com/deixis/execkit/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu        sync.RWMutex
	cfg       *config.Config
	runner    *runner.Runner
	workspace string

	recorder *history.Recorder
	store    history.Store
	logger   *zap.Logger
}

// NewServer creates an MCP server with all execkit tools registered.
// Runs are recorded in a session log and saved to store.
func NewServer(cfg *config.Config, store history.Store, workspace string, opts ...ServerOption) *mcp.Server {
	so := serverOptions{logger: zap.NewNop()}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		cfg:       cfg,
		runner:    cfg.NewRunner(workspace),
		workspace: workspace,
		store:     store,
		logger:    so.logger,
	}
	h.recorder = history.NewRecorder(h, store, so.logger)

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "execkit", Version: execkit.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "exec_run",
		Description: `Run one external command and return its exit status, stdout and stderr.

Pass either "command" (a shell line; pipes and $VARS work unless use_shell=false)
or "argv" (an argument vector invoked directly, safe for user-supplied values).
The command is killed after timeout_seconds (default from config, 30s otherwise).
Every run is recorded; use exec_inspect with the returned run ID to see it again.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exec_preset",
		Description: "Run a named preset command from the .execkit configuration. List presets with exec_presets.",
	}, h.presetHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exec_presets",
		Description: "List the preset commands defined in the .execkit configuration.",
	}, h.presetsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exec_history",
		Description: "List commands executed in this session, oldest first, with status and run ID.",
	}, h.historyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exec_inspect",
		Description: "Show the full record of one run (command, status, exit code, stdout, stderr) by run ID.",
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exec_clear_history",
		Description: "Clear the session history list. Stored records stay available to exec_inspect.",
	}, h.clearHistoryHandler)

	return s
}

// ServerOption configures the execkit MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for run and session events.
func WithLogger(l *zap.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Execute runs c on the current runner. It lets the recorder follow
// workspace changes made by updateWorkspaceFromRoots.
func (h *handler) Execute(ctx context.Context, c runner.Command, opts runner.Options) runner.Result {
	h.mu.RLock()
	r := h.runner
	h.mu.RUnlock()
	return r.Execute(ctx, c, opts)
}

// snapshot returns the current config and workspace.
func (h *handler) snapshot() (*config.Config, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg, h.workspace
}

// updateWorkspaceFromRoots queries the client for MCP roots and switches
// the workspace, config and runner if a valid file root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn("loading config from client root", zap.String("workspace", workspace), zap.Error(err))
		return
	}

	h.mu.Lock()
	h.cfg = loaded.Config
	h.workspace = workspace
	h.runner = loaded.Config.NewRunner(workspace)
	h.mu.Unlock()

	h.logger.Info("workspace updated from client roots", zap.String("workspace", workspace))
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
