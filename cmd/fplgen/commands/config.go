package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fplgen/fplgen/config"
	"github.com/fplgen/fplgen/display"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fplgen configuration",
	Long: `Display and manage fplgen configuration settings.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (FPLGEN_* prefix)
3. Project config (fplgen.toml, searched upward from the working directory)
4. User config (~/.fplgen/config.toml)
5. System config (/etc/fplgen/config.toml)
6. Default values

Examples:
  fplgen config show                  # Show effective configuration
  fplgen config show --format json    # Show configuration in JSON format
  fplgen config get generator.command # Get a specific config value
  fplgen config init                  # Write a starter fplgen.toml
  fplgen config set source.dir fpl    # Change a setting in fplgen.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Display the effective fplgen configuration merged from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., source.dir, generator.command)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting in the project configuration file",
	Long: `Write a setting into the project fplgen.toml, creating a rotating backup
of the previous file first. Keys use dot notation (section.field).

Examples:
  fplgen config set source.dir grammars
  fplgen config set source.stale_millis 1000
  fplgen config set generator.command "java -jar fuzzgen.jar"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Long: `Write a starter fplgen.toml with the common settings filled in with
their defaults. Without a path the file lands in the working directory.
An existing file is rotated into a backup first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the discovered project configuration file",
	Long:  "Print the path of the fplgen.toml found in the working directory or its parents.",
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Long:  "Validate that the effective fplgen configuration is usable",
	RunE:  runConfigValidate,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	projectFile, _ := cmd.Flags().GetString("config")
	if projectFile == "" {
		projectFile = config.ProjectConfigPath()
	}

	format := configFormat
	if !cmd.Flags().Changed("format") && display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	switch format {
	case "json":
		return display.OutputJSON(struct {
			Config      *config.Config `json:"config"`
			ProjectFile string         `json:"project_file,omitempty"`
		}{Config: cfg, ProjectFile: projectFile})

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		printConfigHeader(projectFile)
		fmt.Print(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		printConfigHeader(projectFile)
		fmt.Print(string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", format)
	}

	return nil
}

func printConfigHeader(projectFile string) {
	fmt.Println("# fplgen configuration")
	if projectFile != "" {
		fmt.Printf("# project file: %s\n", projectFile)
	} else {
		fmt.Println("# project file: none found (defaults, user/system config, and environment)")
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v, err := config.GetViper()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Println(v.Get(key))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("config")
	if target == "" {
		target = config.ProjectConfigPath()
	}
	if target == "" {
		return fmt.Errorf("no %s found; run 'fplgen config init' first", config.ProjectConfigName)
	}

	key, raw := args[0], args[1]
	if err := config.Update(target, key, parseSettingValue(raw)); err != nil {
		return err
	}

	fmt.Printf("✓ Set %s = %s in %s\n", key, raw, target)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	written, err := config.Init(path)
	if err != nil {
		return fmt.Errorf("failed to write starter config: %w", err)
	}

	fmt.Printf("✓ Wrote %s\n", written)
	fmt.Println("Edit it to point source.dir at your definition files.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := config.ProjectConfigPath()
	if path == "" {
		return fmt.Errorf("no %s found in this or any parent directory", config.ProjectConfigName)
	}

	fmt.Println(path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, _, err := loadConfig(cmd); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}
