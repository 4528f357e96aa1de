package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/fplgen/fplgen/errors"
)

// ProjectConfigName is the per-project configuration file, discovered by
// walking up from the working directory.
const ProjectConfigName = "fplgen.toml"

var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load returns the global configuration, loading and validating it on
// first use. Later calls return the cached value until Reset.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	viperInstance = v
	return globalConfig, nil
}

// GetViper returns the viper instance behind the global configuration,
// initializing it on first use.
func GetViper() (*viper.Viper, error) {
	if viperInstance == nil {
		if _, err := Load(); err != nil {
			return nil, err
		}
	}
	return viperInstance, nil
}

// LoadWithViper unmarshals and validates a configuration from an explicit
// viper instance. Weak typing lets environment values ("true", "250")
// decode into bool and int fields.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	})
	if err != nil {
		return nil, errors.WrapConfiguration(err, "unmarshalling configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads a configuration from a single explicit file,
// skipping the layered search. Defaults still apply underneath.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapConfiguration(err, "reading configuration file")
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration so the next Load re-reads the
// environment and config files. Intended for tests.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// ProjectRoot returns the directory of the project configuration file
// when one is found, and the working directory otherwise. Relative
// source and output directories resolve against it.
func ProjectRoot() string {
	if projectConfig := findProjectConfig(); projectConfig != "" {
		return filepath.Dir(projectConfig)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

// ProjectConfigPath returns the discovered project configuration file, or
// "" when no fplgen.toml exists in the working directory or any parent.
func ProjectConfigPath() string {
	return findProjectConfig()
}

func initViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix("FPLGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Set-but-empty counts as set, so FPLGEN_GENERATOR_PACKAGE="" can
	// select the root namespace.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	BindEnvOverrides(v)
	SetDefaults(v)

	if err := mergeConfigFiles(v); err != nil {
		return nil, err
	}

	return v, nil
}

// mergeConfigFiles layers system, user, and project config files into v,
// later files overriding earlier ones for overlapping keys. Merged
// settings stay below environment variables in precedence.
func mergeConfigFiles(v *viper.Viper) error {
	paths := []string{"/etc/fplgen/config.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".fplgen", "config.toml"))
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		paths = append(paths, projectConfig)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(path)
		tempViper.SetConfigType("toml")
		if err := tempViper.ReadInConfig(); err != nil {
			return errors.WrapConfiguration(err, "reading "+path)
		}
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			return errors.WrapConfiguration(err, "merging "+path)
		}
	}

	return nil
}

// findProjectConfig walks up from the working directory looking for a
// project configuration file. Returns "" when none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
