//go:build !windows

package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/execkit/internal/config"
	"github.com/deixis/execkit/internal/history"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// setup creates a full execkit MCP server + client over in-memory transports.
func setup(t *testing.T, workspaceDir string, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	if cfg == nil {
		cfg = &config.Config{}
	}
	store := history.NewLRUStore(5, history.NewDiskStore(t.TempDir()))
	server := NewServer(cfg, store, workspaceDir)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// runID extracts the run ID from a "Run: <id>" line.
func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Run: ") {
			return strings.TrimPrefix(line, "Run: ")
		}
	}
	t.Fatalf("no Run line in output:\n%s", text)
	return ""
}

// --- exec_run ---

func TestExecRun_ShellCommand(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"command": "echo hello | tr a-z A-Z"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Status: succeeded") {
		t.Errorf("expected Status: succeeded, got:\n%s", text)
	}
	if !strings.Contains(text, "HELLO") {
		t.Errorf("expected piped stdout, got:\n%s", text)
	}
	if !strings.Contains(text, "Exit: 0") {
		t.Errorf("expected Exit: 0, got:\n%s", text)
	}
}

func TestExecRun_Argv(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"argv": []any{"echo", "$HOME; id"}})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "$HOME; id") {
		t.Errorf("expected argument echoed verbatim, got:\n%s", text)
	}
}

func TestExecRun_NonZeroExit(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"command": "echo bad >&2; exit 4"})
	text := resultText(res)
	if !res.IsError {
		t.Errorf("expected IsError for failing command, got:\n%s", text)
	}
	if !strings.Contains(text, "Status: failed") || !strings.Contains(text, "Exit: 4") {
		t.Errorf("expected failed status with exit 4, got:\n%s", text)
	}
	if !strings.Contains(text, "bad") {
		t.Errorf("expected stderr in output, got:\n%s", text)
	}
}

func TestExecRun_Timeout(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"command": "sleep 5", "timeout_seconds": 0.3})
	text := resultText(res)
	if !res.IsError {
		t.Errorf("expected IsError for timed out command")
	}
	if !strings.Contains(text, "Status: timed_out") || !strings.Contains(text, "Command timed out") {
		t.Errorf("expected timeout report, got:\n%s", text)
	}
}

func TestExecRun_UseShellFalse(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"command": "echo $HOME", "use_shell": false})
	text := resultText(res)
	if !strings.Contains(text, "$HOME") {
		t.Errorf("expected literal $HOME, got:\n%s", text)
	}
}

func TestExecRun_EnvAndCwd(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "repo"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Env: map[string]string{"AWS_DEFAULT_REGION": "us-east-1"}}
	cs := setup(t, dir, cfg)
	res := callTool(t, cs, "exec_run", map[string]any{
		"command": `printf '%s %s ' "$AWS_DEFAULT_REGION" "$KUBECONFIG"; basename "$(pwd)"`,
		"env":     map[string]any{"KUBECONFIG": "/etc/kube/config"},
		"cwd":     "repo",
	})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "us-east-1 /etc/kube/config repo") {
		t.Errorf("expected config env, call env and cwd, got:\n%s", text)
	}
}

func TestExecRun_WorkspaceBound(t *testing.T) {
	cs := setup(t, t.TempDir(), &config.Config{WorkspaceBound: true})
	res := callTool(t, cs, "exec_run", map[string]any{"argv": []any{"pwd"}, "cwd": "/"})
	text := resultText(res)
	if !res.IsError || !strings.Contains(text, "outside workspace") {
		t.Errorf("expected launch error for cwd outside workspace, got:\n%s", text)
	}
}

func TestExecRun_CommandAndArgv(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{"command": "ls", "argv": []any{"ls"}})
	if !res.IsError || !strings.Contains(resultText(res), "not both") {
		t.Errorf("expected error for command and argv, got:\n%s", resultText(res))
	}
}

func TestExecRun_Empty(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_run", map[string]any{})
	if !res.IsError {
		t.Errorf("expected IsError for missing command, got:\n%s", resultText(res))
	}
}

// --- exec_preset ---

func TestExecPreset(t *testing.T) {
	cfg := &config.Config{Presets: map[string]config.Preset{
		"greet": {Argv: []string{"echo", "hi from preset"}, Description: "say hi"},
	}}
	cs := setup(t, t.TempDir(), cfg)

	res := callTool(t, cs, "exec_preset", map[string]any{"name": "greet"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "hi from preset") {
		t.Errorf("expected preset output, got:\n%s", text)
	}

	list := resultText(callTool(t, cs, "exec_presets", nil))
	if !strings.Contains(list, "greet: echo") || !strings.Contains(list, "say hi") {
		t.Errorf("expected preset listing, got:\n%s", list)
	}
}

func TestExecPreset_Unknown(t *testing.T) {
	cfg := &config.Config{Presets: map[string]config.Preset{"disk": {Run: "df -h"}}}
	cs := setup(t, t.TempDir(), cfg)
	res := callTool(t, cs, "exec_preset", map[string]any{"name": "nope"})
	text := resultText(res)
	if !res.IsError {
		t.Errorf("expected IsError for unknown preset")
	}
	if !strings.Contains(text, "available: disk") {
		t.Errorf("expected available presets in error, got:\n%s", text)
	}
}

func TestExecPresets_Empty(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	text := resultText(callTool(t, cs, "exec_presets", nil))
	if !strings.Contains(text, "No presets configured") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

// --- exec_history / exec_inspect ---

func TestExecHistory_AndInspect(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)

	empty := resultText(callTool(t, cs, "exec_history", nil))
	if !strings.Contains(empty, "No commands executed yet") {
		t.Errorf("expected empty history, got:\n%s", empty)
	}

	first := resultText(callTool(t, cs, "exec_run", map[string]any{"command": "echo one"}))
	callTool(t, cs, "exec_run", map[string]any{"command": "exit 2"})
	id := runID(t, first)

	hist := resultText(callTool(t, cs, "exec_history", nil))
	if !strings.Contains(hist, "History (2)") {
		t.Errorf("expected 2 history entries, got:\n%s", hist)
	}
	if strings.Index(hist, "echo one") > strings.Index(hist, "exit 2") {
		t.Errorf("expected oldest first, got:\n%s", hist)
	}

	last := resultText(callTool(t, cs, "exec_history", map[string]any{"limit": 1}))
	if !strings.Contains(last, "last 1 of 2") || strings.Contains(last, "echo one") {
		t.Errorf("expected only the latest entry, got:\n%s", last)
	}

	insp := callTool(t, cs, "exec_inspect", map[string]any{"run_id": id})
	if insp.IsError {
		t.Fatalf("unexpected error from exec_inspect: %s", resultText(insp))
	}
	if !strings.Contains(resultText(insp), "one") {
		t.Errorf("expected stdout of first run, got:\n%s", resultText(insp))
	}

	cleared := resultText(callTool(t, cs, "exec_clear_history", nil))
	if !strings.Contains(cleared, "Cleared 2") {
		t.Errorf("unexpected clear output:\n%s", cleared)
	}
	after := resultText(callTool(t, cs, "exec_history", nil))
	if !strings.Contains(after, "No commands executed yet") {
		t.Errorf("expected empty history after clear, got:\n%s", after)
	}

	// Stored records outlive the session list.
	if callTool(t, cs, "exec_inspect", map[string]any{"run_id": id}).IsError {
		t.Error("expected record to stay inspectable after clear")
	}
}

func TestExecInspect_MissingRunID(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "exec_inspect",
		Arguments: map[string]any{},
	})
	if err == nil {
		t.Error("expected error for missing run_id")
	}
}

func TestExecInspect_InvalidRunID(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	res := callTool(t, cs, "exec_inspect", map[string]any{"run_id": "nonexistent-id"})
	if !res.IsError {
		t.Error("expected IsError for invalid run_id")
	}
}

func TestResolveCwd(t *testing.T) {
	cases := []struct{ workspace, cwd, want string }{
		{"/ws", "", "/ws"},
		{"/ws", "repo", "/ws/repo"},
		{"/ws", "/abs", "/abs"},
		{"", "rel", "rel"},
	}
	for _, c := range cases {
		if got := resolveCwd(c.workspace, c.cwd); got != c.want {
			t.Errorf("resolveCwd(%q, %q) = %q, want %q", c.workspace, c.cwd, got, c.want)
		}
	}
}

func TestExecRun_InvalidTimeout(t *testing.T) {
	cs := setup(t, t.TempDir(), nil)
	for _, secs := range []float64{1e-10, -1, 1e300} {
		res := callTool(t, cs, "exec_run", map[string]any{"command": "echo never", "timeout_seconds": secs})
		text := resultText(res)
		if !res.IsError || !strings.Contains(text, "timeout_seconds") {
			t.Errorf("timeout_seconds=%v: expected timeout error, got:\n%s", secs, text)
		}
		if strings.Contains(text, "never") {
			t.Errorf("timeout_seconds=%v: command ran, got:\n%s", secs, text)
		}
	}
}

func TestTimeoutFromSeconds(t *testing.T) {
	cases := []struct {
		secs    float64
		want    time.Duration
		wantErr bool
	}{
		{0, 0, false},
		{0.5, 500 * time.Millisecond, false},
		{90, 90 * time.Second, false},
		{1e-10, 0, true},
		{-3, 0, true},
		{1e12, 0, true},
	}
	for _, c := range cases {
		got, err := timeoutFromSeconds(c.secs)
		if (err != nil) != c.wantErr {
			t.Errorf("timeoutFromSeconds(%v) error = %v, wantErr %v", c.secs, err, c.wantErr)
			continue
		}
		if got != c.want {
			t.Errorf("timeoutFromSeconds(%v) = %s, want %s", c.secs, got, c.want)
		}
	}
}

func TestExecPreset_DirFromRepoRoot(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"deploy", "sub"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{Root: root, Presets: map[string]config.Preset{
		"where": {Run: `basename "$(pwd)"`, Dir: "deploy"},
		"here":  {Run: `basename "$(pwd)"`},
	}}
	cs := setup(t, filepath.Join(root, "sub"), cfg)

	if text := resultText(callTool(t, cs, "exec_preset", map[string]any{"name": "where"})); !strings.Contains(text, "deploy") {
		t.Errorf("expected preset dir resolved against the repo root, got:\n%s", text)
	}
	if text := resultText(callTool(t, cs, "exec_preset", map[string]any{"name": "here"})); !strings.Contains(text, "sub") {
		t.Errorf("expected preset without dir to run in the workspace, got:\n%s", text)
	}
}
