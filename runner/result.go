package runner

import "time"

// Status is the terminal state of one Execute call.
type Status string

const (
	// Succeeded means the process exited with status 0.
	Succeeded Status = "succeeded"
	// Failed means the process exited non-zero or was canceled by the caller.
	Failed Status = "failed"
	// TimedOut means the deadline expired and the process group was killed.
	TimedOut Status = "timed_out"
	// LaunchError means the process could not be started.
	LaunchError Status = "launch_error"
)

// Result is an immutable snapshot of one completed or aborted invocation.
// Callers only need Success, Stdout and Stderr; the remaining fields are
// derived facts about the same run.
type Result struct {
	Success bool   // true iff the process exited with status 0
	Stdout  string // captured stdout, lossily decoded as UTF-8
	Stderr  string // captured stderr, TimeoutMessage, or the launch error text

	RunID     string        // unique identifier for this run
	Status    Status        // terminal state
	ExitCode  int           // process exit code, -1 if the process never exited normally
	Duration  time.Duration // wall-clock time from start to result
	Truncated bool          // true if either stream exceeded the output cap
}

// TimedOut reports whether the run was killed by its deadline.
func (r Result) TimedOut() bool {
	return r.Status == TimedOut
}
