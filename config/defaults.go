package config

import "github.com/spf13/viper"

// SetDefaults registers the default value for every configuration key.
// Keep in sync with the starter file written by Init.
func SetDefaults(v *viper.Viper) {
	// Source tree
	v.SetDefault("source.dir", ".")
	v.SetDefault("source.includes", []string{"**/*.fpl", "**/*.FPL"})
	v.SetDefault("source.excludes", []string{})
	v.SetDefault("source.stale_millis", 0) // raise on filesystems with coarse timestamps

	// Generated output
	v.SetDefault("output.dir", "generated/fuzzer")
	v.SetDefault("output.protected_roots", []string{"src"})

	// External generator
	v.SetDefault("generator.command", "fuzzer")
	v.SetDefault("generator.extra_args", []string{})
	v.SetDefault("generator.version_constraint", "") // "" = accept any version
	v.SetDefault("generator.timeout_seconds", 300)

	// Watch mode
	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("watch.max_runs_per_minute", 30)

	// Logging
	v.SetDefault("log.json", false)
}

// BindEnvOverrides binds keys that have no default value so that
// environment-only overrides survive unmarshalling. AutomaticEnv alone
// resolves only keys viper already knows about.
func BindEnvOverrides(v *viper.Viper) {
	v.BindEnv("generator.package", "FPLGEN_GENERATOR_PACKAGE")
	v.BindEnv("source.follow_symlinks", "FPLGEN_SOURCE_FOLLOW_SYMLINKS")
}
