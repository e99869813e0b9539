// Package config loads and validates the optional .execkit YAML file.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/deixis/execkit/runner"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file at the repository root.
const FileName = ".execkit"

// Default values for runner configuration.
const (
	DefaultTimeout      = runner.DefaultTimeout
	DefaultMaxOutput    = 1 << 20 // 1 MB
	DefaultHistoryCache = 16
)

// Config holds the parsed .execkit configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version        int               `yaml:"version"`
	RawTimeout     string            `yaml:"timeout"`    // e.g. "30s", "2m"
	RawMaxOutput   int               `yaml:"max_output"` // bytes per stream
	RawShell       []string          `yaml:"shell"`      // e.g. [/bin/bash, -c]
	WorkspaceBound bool              `yaml:"workspace_bound"`
	Env            map[string]string `yaml:"env"` // overlay applied to every command
	History        HistoryConfig     `yaml:"history"`
	Presets        map[string]Preset `yaml:"presets"`

	// Root is the repository root the file was loaded from. Relative
	// history and preset directories resolve against it.
	Root string `yaml:"-"`
}

// HistoryConfig controls where run records are kept.
type HistoryConfig struct {
	Dir   string `yaml:"dir"`   // relative to the repo root; empty: user cache directory
	Cache int    `yaml:"cache"` // LRU entries kept in memory
}

// Preset is a named command with its own options.
// Exactly one of Run and Argv must be set.
type Preset struct {
	Description string            `yaml:"description"`
	Run         string            `yaml:"run"`  // shell line
	Argv        []string          `yaml:"argv"` // argument vector
	NoShell     bool              `yaml:"no_shell"`
	RawTimeout  string            `yaml:"timeout"`
	Env         map[string]string `yaml:"env"`
	Dir         string            `yaml:"dir"`
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if d, ok := parseTimeout(c.RawTimeout); ok {
		return d
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Shell returns the configured shell prefix. Nil means the platform default.
func (c *Config) Shell() []string {
	if len(c.RawShell) > 0 {
		return c.RawShell
	}
	return nil
}

// HistoryCache returns the configured LRU size, falling back to 16.
func (c *Config) HistoryCache() int {
	if c.History.Cache > 0 {
		return c.History.Cache
	}
	return DefaultHistoryCache
}

// BaseOptions returns the options every command starts from.
func (c *Config) BaseOptions() runner.Options {
	return runner.Options{
		Timeout: c.Timeout(),
		Env:     maps.Clone(c.Env),
	}
}

// NewRunner builds a runner honouring the shell, output cap and workspace
// bound settings.
func (c *Config) NewRunner(workspace string) *runner.Runner {
	r := &runner.Runner{
		Shell:     c.Shell(),
		MaxOutput: c.MaxOutputBytes(),
	}
	if c.WorkspaceBound {
		r.Workspace = workspace
	}
	return r
}

// ResolveDir anchors a relative dir at the repository root. Empty and
// absolute dirs, and any dir when Root is unset, are returned unchanged.
func (c *Config) ResolveDir(dir string) string {
	if dir == "" || filepath.IsAbs(dir) || c.Root == "" {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

// PresetOptions layers p over the base options with its dir resolved
// against the repository root.
func (c *Config) PresetOptions(p Preset) runner.Options {
	opts := p.Options(c.BaseOptions())
	opts.Dir = c.ResolveDir(opts.Dir)
	return opts
}

// ErrUnknownPreset is returned by Preset when no preset has the given name.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset returns the named preset.
func (c *Config) Preset(name string) (Preset, error) {
	p, ok := c.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return p, nil
}

// PresetNames returns the preset names in sorted order.
func (c *Config) PresetNames() []string {
	return slices.Sorted(maps.Keys(c.Presets))
}

// Command builds the runner command for the preset.
func (p Preset) Command() runner.Command {
	if len(p.Argv) > 0 {
		return runner.Args(p.Argv...)
	}
	return runner.Shell(p.Run)
}

// Options layers the preset over base: preset env keys win over base env
// keys, and the preset timeout and dir replace the base ones when set.
func (p Preset) Options(base runner.Options) runner.Options {
	opts := base
	opts.NoShell = p.NoShell
	if d, ok := parseTimeout(p.RawTimeout); ok {
		opts.Timeout = d
	}
	if p.Dir != "" {
		opts.Dir = p.Dir
	}
	if len(p.Env) > 0 {
		env := maps.Clone(base.Env)
		if env == nil {
			env = make(map[string]string, len(p.Env))
		}
		maps.Copy(env, p.Env)
		opts.Env = env
	}
	return opts
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		if _, ok := parseTimeout(c.RawTimeout); !ok {
			return fmt.Errorf("timeout %q: want a positive duration such as 30s", c.RawTimeout)
		}
	}
	for _, name := range c.PresetNames() {
		p := c.Presets[name]
		switch {
		case p.Run != "" && len(p.Argv) > 0:
			return fmt.Errorf("preset %s: set either run or argv, not both", name)
		case p.Run == "" && len(p.Argv) == 0:
			return fmt.Errorf("preset %s: one of run or argv is required", name)
		}
		if p.RawTimeout != "" {
			if _, ok := parseTimeout(p.RawTimeout); !ok {
				return fmt.Errorf("preset %s: timeout %q: want a positive duration such as 30s", name, p.RawTimeout)
			}
		}
	}
	return nil
}

func parseTimeout(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod or .git; falls back to workspace
}

// Load reads the .execkit file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod or .git. If no .execkit file exists, a default Config
// is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No marker found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{Root: root}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	cfg.Root = root
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// findRepoRoot walks upward from dir looking for a directory containing
// go.mod or .git.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("repository root not found")
		}
		dir = parent
	}
}
