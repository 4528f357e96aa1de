package config

import (
	"path/filepath"
	"time"

	"github.com/fplgen/fplgen/fpl"
)

// Config represents the core fplgen configuration
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Output    OutputConfig    `mapstructure:"output"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
}

// SourceConfig configures where definition files live and how they are matched
type SourceConfig struct {
	Dir            string   `mapstructure:"dir"`             // definition file root, relative to the project root (default: ".")
	Includes       []string `mapstructure:"includes"`        // glob patterns relative to dir (default: **/*.fpl, **/*.FPL)
	Excludes       []string `mapstructure:"excludes"`        // glob patterns pruned from the include set
	FollowSymlinks *bool    `mapstructure:"follow_symlinks"` // nil = follow (omit for default)
	StaleMillis    int      `mapstructure:"stale_millis"`    // clock tolerance when comparing timestamps (default: 0)
}

// OutputConfig configures where generated sources are written
type OutputConfig struct {
	Dir            string   `mapstructure:"dir"`             // generated source root (default: generated/fuzzer)
	ProtectedRoots []string `mapstructure:"protected_roots"` // directories generation must never write into (default: src)
}

// GeneratorConfig configures the external fuzzer generator invocation
type GeneratorConfig struct {
	Command           string   `mapstructure:"command"`            // generator command line, shell-quoted (default: "fuzzer")
	ExtraArgs         []string `mapstructure:"extra_args"`         // appended after the standard arguments
	Package           *string  `mapstructure:"package"`            // nil = use declared namespaces, "" = root namespace
	VersionConstraint string   `mapstructure:"version_constraint"` // semver range the generator must satisfy ("" = skip check)
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`    // per-invocation limit, 0 = no limit (default: 300)
}

// WatchConfig configures continuous regeneration
type WatchConfig struct {
	DebounceMs       int `mapstructure:"debounce_ms"`         // quiet period after a change burst (default: 500)
	MaxRunsPerMinute int `mapstructure:"max_runs_per_minute"` // rate limit on pipeline runs, 0 = unlimited (default: 30)
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"` // structured JSON on stderr instead of the console encoder
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // world-readable directories
	DefaultFilePermissions = 0644 // world-readable files
)

// SourceDir returns the absolute definition file root, resolving the
// configured directory against projectRoot when it is relative.
func (c *Config) SourceDir(projectRoot string) string {
	return absolutize(projectRoot, c.Source.Dir)
}

// OutputDir returns the absolute generated source root, resolving the
// configured directory against projectRoot when it is relative.
func (c *Config) OutputDir(projectRoot string) string {
	return absolutize(projectRoot, c.Output.Dir)
}

// ProtectedRoots returns the absolute directories generation must not
// write into.
func (c *Config) ProtectedRoots(projectRoot string) []string {
	roots := make([]string, 0, len(c.Output.ProtectedRoots))
	for _, root := range c.Output.ProtectedRoots {
		roots = append(roots, absolutize(projectRoot, root))
	}
	return roots
}

// ScanConfig maps the source and output sections onto a scanner
// configuration rooted at projectRoot.
func (c *Config) ScanConfig(projectRoot string) fpl.ScanConfig {
	return fpl.ScanConfig{
		SourceDir:         c.SourceDir(projectRoot),
		Includes:          c.Source.Includes,
		Excludes:          c.Source.Excludes,
		OutputDir:         c.OutputDir(projectRoot),
		StaleTolerance:    c.StaleTolerance(),
		NamespaceOverride: c.Generator.Package,
		FollowSymlinks:    c.Source.FollowSymlinks,
	}
}

// StaleTolerance returns the configured timestamp tolerance as a duration.
func (c *Config) StaleTolerance() time.Duration {
	return time.Duration(c.Source.StaleMillis) * time.Millisecond
}

// GeneratorTimeout returns the per-invocation generator limit, or zero
// when invocations may run unbounded.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// DebounceInterval returns the watch quiet period as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

func absolutize(projectRoot, dir string) string {
	if dir == "" {
		return projectRoot
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(projectRoot, dir)
}
