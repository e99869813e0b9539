package runner

import (
	"strconv"
	"strings"
)

// Command is either a shell line or an argument vector. Use Shell or Args
// to build one; the zero value is an empty shell line and fails to launch.
type Command struct {
	line string
	argv []string
	vec  bool
}

// Shell returns a command interpreted by the system shell, so pipes,
// variable expansion and globbing apply. With Options.NoShell the line is
// split on whitespace and executed literally instead.
func Shell(line string) Command {
	return Command{line: line}
}

// Args returns a command invoked directly with the given argument vector.
// No shell ever sees the arguments, so user-supplied values cannot inject
// shell syntax.
func Args(argv ...string) Command {
	return Command{argv: append([]string(nil), argv...), vec: true}
}

// IsArgv reports whether c is an argument vector.
func (c Command) IsArgv() bool {
	return c.vec
}

// Line returns the shell line, or "" for an argument vector.
func (c Command) Line() string {
	return c.line
}

// Argv returns a copy of the argument vector, or nil for a shell line.
func (c Command) Argv() []string {
	if !c.vec {
		return nil
	}
	return append([]string(nil), c.argv...)
}

// String renders the command for display. Vector elements containing
// whitespace or quotes are quoted.
func (c Command) String() string {
	if !c.vec {
		return c.line
	}
	parts := make([]string, len(c.argv))
	for i, a := range c.argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			parts[i] = strconv.Quote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
