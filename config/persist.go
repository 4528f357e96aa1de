package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Deletion failures don't block the config write
		logger.Warnf("Failed to delete old backup %s: %v", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// Init writes a starter project configuration file and returns its
// absolute path. An existing file is rotated into the backups first.
func Init(path string) (string, error) {
	if path == "" {
		path = ProjectConfigName
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WrapConfiguration(err, "resolving configuration path")
	}

	if err := createBackup(abs); err != nil {
		return "", errors.WrapConfiguration(err, "backing up existing configuration")
	}

	data, err := toml.Marshal(starterSettings())
	if err != nil {
		return "", errors.WrapConfiguration(err, "marshalling starter configuration")
	}

	if err := os.MkdirAll(filepath.Dir(abs), DefaultDirPermissions); err != nil {
		return "", errors.WrapConfiguration(err, "creating configuration directory")
	}
	if err := os.WriteFile(abs, data, DefaultFilePermissions); err != nil {
		return "", errors.WrapConfiguration(err, "writing configuration file")
	}

	return abs, nil
}

// Update sets a single section.field key in the project configuration
// file at path, creating the file when missing. An existing file is
// rotated into the backups before the write.
func Update(path, key string, value interface{}) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.NewConfigurationError("key must look like section.field, got %q", key)
	}

	settings, err := readSettings(path)
	if err != nil {
		return err
	}

	section, ok := settings[parts[0]].(map[string]interface{})
	if !ok {
		section = make(map[string]interface{})
	}
	section[parts[1]] = value
	settings[parts[0]] = section

	return saveSettings(settings, path)
}

// starterSettings mirrors the commonly edited defaults as a marshallable
// tree. generator.package is deliberately absent so declared namespaces
// stay in effect until someone opts into an override.
func starterSettings() map[string]interface{} {
	return map[string]interface{}{
		"source": map[string]interface{}{
			"dir":          ".",
			"includes":     []string{"**/*.fpl", "**/*.FPL"},
			"stale_millis": 0,
		},
		"output": map[string]interface{}{
			"dir":             "generated/fuzzer",
			"protected_roots": []string{"src"},
		},
		"generator": map[string]interface{}{
			"command":         "fuzzer",
			"timeout_seconds": 300,
		},
		"watch": map[string]interface{}{
			"debounce_ms":         500,
			"max_runs_per_minute": 30,
		},
	}
}

func readSettings(path string) (map[string]interface{}, error) {
	settings := make(map[string]interface{})

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, errors.WrapConfiguration(err, "reading configuration file")
	}

	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, errors.WrapConfiguration(err, "parsing configuration file")
	}
	return settings, nil
}

func saveSettings(settings map[string]interface{}, path string) error {
	if err := createBackup(path); err != nil {
		return errors.WrapConfiguration(err, "backing up configuration file")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.WrapConfiguration(err, "marshalling configuration")
	}

	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.WrapConfiguration(err, "writing configuration file")
	}
	return nil
}
