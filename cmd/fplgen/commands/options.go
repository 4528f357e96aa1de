package commands

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fplgen/fplgen/config"
	"github.com/fplgen/fplgen/display"
	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/fpl"
	"github.com/fplgen/fplgen/gen"
)

// loadConfig resolves the effective configuration and the project root that
// relative directories are anchored to. An explicit --config file skips the
// discovery cascade and anchors the project root at the file's directory.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, "", err
		}
		return cfg, config.ProjectRoot(), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", errors.WrapConfiguration(err, "resolving config path")
	}
	cfg, err := config.LoadFromFile(abs)
	if err != nil {
		return nil, "", err
	}
	return cfg, filepath.Dir(abs), nil
}

// addScanFlags registers the override flags shared by scan, generate, and
// watch.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Override the source directory")
	cmd.Flags().String("output", "", "Override the output directory")
	cmd.Flags().String("package", "", "Override declared namespaces (empty string selects the root namespace)")
	cmd.Flags().Int("stale-millis", 0, "Override the staleness tolerance in milliseconds")
}

// applyOverrides copies explicitly set override flags onto the loaded
// configuration. --package is tri-state: left alone it keeps the declared
// namespaces, set (even to "") it overrides them.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("source") {
		cfg.Source.Dir, _ = cmd.Flags().GetString("source")
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("package") {
		pkg, _ := cmd.Flags().GetString("package")
		cfg.Generator.Package = &pkg
	}
	if cmd.Flags().Changed("stale-millis") {
		cfg.Source.StaleMillis, _ = cmd.Flags().GetInt("stale-millis")
	}
}

// buildPipeline assembles a generation pipeline from the configuration, with
// progress going to the terminal or to JSON depending on the output mode.
func buildPipeline(cmd *cobra.Command, cfg *config.Config, projectRoot string, force bool) (*gen.Pipeline, error) {
	sc := cfg.ScanConfig(projectRoot)
	sc.Force = force

	scanner, err := fpl.NewScanner(sc)
	if err != nil {
		return nil, err
	}

	runner, err := gen.NewExecRunner(cfg.Generator.Command, cfg.GeneratorTimeout())
	if err != nil {
		return nil, err
	}

	var emitter gen.ProgressEmitter
	if display.ShouldOutputJSON(cmd) {
		emitter = gen.NewJSONEmitter()
	} else {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		emitter = gen.NewCLIEmitter(verbosity)
	}

	return gen.NewPipeline(gen.PipelineConfig{
		Scanner:           scanner,
		Runner:            runner,
		Emitter:           emitter,
		VersionConstraint: cfg.Generator.VersionConstraint,
		ProtectedRoots:    cfg.ProtectedRoots(projectRoot),
		ExtraArgs:         cfg.Generator.ExtraArgs,
	})
}

// parseSettingValue guesses the TOML type of a value given on the command
// line. Integers win over bools so "1" stays a number.
func parseSettingValue(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
