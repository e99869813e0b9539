// Package execkit runs external commands behind a uniform result contract.
// The executor lives in the runner package; cmd/execkit and internal/mcp
// expose it as a CLI and an MCP server.
package execkit

// Version is the execkit release version.
const Version = "0.3.0"
