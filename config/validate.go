package config

import (
	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/kballard/go-shellquote"

	"github.com/fplgen/fplgen/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Source dir is optional - empty resolves to the project root

	for _, pattern := range c.Source.Includes {
		if !doublestar.ValidatePattern(pattern) {
			return errors.NewConfigurationError("source.includes contains an invalid pattern: %q", pattern)
		}
	}
	for _, pattern := range c.Source.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return errors.NewConfigurationError("source.excludes contains an invalid pattern: %q", pattern)
		}
	}

	// Stale tolerance: 0 = exact timestamp comparison, negative = invalid
	if c.Source.StaleMillis < 0 {
		return errors.NewConfigurationError("source.stale_millis must be >= 0, got %d", c.Source.StaleMillis)
	}

	if c.Generator.Command == "" {
		return errors.NewConfigurationError("generator.command cannot be empty")
	}
	if _, err := shellquote.Split(c.Generator.Command); err != nil {
		return errors.NewConfigurationError("generator.command is not a valid command line: %v", err)
	}

	// Version constraint: "" = accept any generator version
	if c.Generator.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.Generator.VersionConstraint); err != nil {
			return errors.NewConfigurationError("generator.version_constraint is not a valid semver range: %v", err)
		}
	}

	// Generator timeout: 0 = no limit, negative = invalid
	if c.Generator.TimeoutSeconds < 0 {
		return errors.NewConfigurationError("generator.timeout_seconds must be >= 0, got %d", c.Generator.TimeoutSeconds)
	}

	// Watch debounce: 0 = rebuild immediately on every event, negative = invalid
	if c.Watch.DebounceMs < 0 {
		return errors.NewConfigurationError("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMs)
	}

	// Watch rate limit: 0 = unlimited runs, negative = invalid
	if c.Watch.MaxRunsPerMinute < 0 {
		return errors.NewConfigurationError("watch.max_runs_per_minute must be >= 0, got %d", c.Watch.MaxRunsPerMinute)
	}

	return nil
}
