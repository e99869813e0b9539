package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type historyParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"show only the most recent N runs. Default: all."`
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	total := h.recorder.Log.Len()
	records := h.recorder.Log.Last(params.Limit)
	if len(records) == 0 {
		return textResult("No commands executed yet.")
	}

	var b strings.Builder
	if len(records) < total {
		fmt.Fprintf(&b, "History (last %d of %d):\n", len(records), total)
	} else {
		fmt.Fprintf(&b, "History (%d):\n", total)
	}
	for _, r := range records {
		fmt.Fprintf(&b, "  %s  %-12s %s  %s\n", r.Timestamp.Format(time.RFC3339), r.Status, r.ID, r.Command)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, `Inspect with exec_inspect(run_id="<id>").`)
	return textResult(b.String())
}

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an exec_run, exec_preset or exec_history result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	return textResult(formatRecord(rec))
}

type clearHistoryParams struct{}

func (h *handler) clearHistoryHandler(ctx context.Context, req *mcp.CallToolRequest, _ clearHistoryParams) (*mcp.CallToolResult, any, error) {
	n := h.recorder.Log.Len()
	h.recorder.Log.Clear()
	return textResult(fmt.Sprintf("Cleared %d history entries.", n))
}
