// Package history keeps the caller-owned record of executed commands: an
// ordered in-memory log for display and a Store for looking runs up by ID.
package history

import (
	"errors"
	"time"

	"github.com/deixis/execkit/runner"
)

// Record is one history entry.
type Record struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Output    string    `json:"output"` // stdout when successful, stderr otherwise

	Status     runner.Status `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	DurationMs int64         `json:"duration_ms"`
	Truncated  bool          `json:"truncated,omitempty"`
}

// NewRecord derives a Record from a result. command is the display form of
// what was executed.
func NewRecord(command string, res runner.Result, at time.Time) *Record {
	output := res.Stderr
	if res.Success {
		output = res.Stdout
	}
	return &Record{
		ID:         res.RunID,
		Command:    command,
		Timestamp:  at,
		Success:    res.Success,
		Output:     output,
		Status:     res.Status,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		DurationMs: res.Duration.Milliseconds(),
		Truncated:  res.Truncated,
	}
}

// ErrNotFound is returned by a Store when no record has the given ID.
var ErrNotFound = errors.New("record not found")

// Store persists and retrieves records.
type Store interface {
	Save(rec *Record) error
	Load(id string) (*Record, error)
}
