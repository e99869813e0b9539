package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/execkit/internal/history"
)

func formatRecord(rec *history.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", rec.Status)
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	fmt.Fprintf(&b, "Command: %s\n", rec.Command)
	if rec.ExitCode >= 0 {
		fmt.Fprintf(&b, "Exit: %d\n", rec.ExitCode)
	}
	fmt.Fprintf(&b, "Duration: %s\n", time.Duration(rec.DurationMs)*time.Millisecond)
	if rec.Truncated {
		fmt.Fprintln(&b, "Output truncated: yes")
	}

	writeStream(&b, "stdout", rec.Stdout)
	writeStream(&b, "stderr", rec.Stderr)
	return b.String()
}

func writeStream(b *strings.Builder, name, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(b)
	fmt.Fprintf(b, "%s:\n", name)
	fmt.Fprint(b, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(b)
	}
}
