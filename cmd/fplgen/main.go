package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fplgen/fplgen/cmd/fplgen/commands"
	"github.com/fplgen/fplgen/config"
	"github.com/fplgen/fplgen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fplgen",
	Short: "fplgen - Incremental fuzzer generation from definition files",
	Long: `fplgen - Incremental fuzzer generation from .fpl definition files.

fplgen scans a source tree for fuzzer definition files, decides which
generated fuzzers are out of date, and drives the external generator to
rebuild exactly those.

Available commands:
  scan     - List definition files whose generated output is stale
  generate - Regenerate fuzzers for stale definition files
  watch    - Regenerate continuously as definition files change
  config   - Manage fplgen configuration
  version  - Show version information

Examples:
  fplgen scan                  # Show what would be regenerated
  fplgen generate              # Regenerate stale fuzzers
  fplgen generate --force      # Regenerate everything
  fplgen watch                 # Keep fuzzers fresh while editing
  fplgen config init           # Write a starter fplgen.toml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOut, _ := cmd.Flags().GetBool("json")
		if !jsonOut {
			// The logger must come up even when the configuration is
			// broken, so load errors fall back to the flag defaults here
			// and surface again in the command itself.
			var cfg *config.Config
			var err error
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg, err = config.LoadFromFile(path)
			} else {
				cfg, err = config.Load()
			}
			if err == nil && cfg.Log.JSON {
				jsonOut = true
			}
		}
		if err := logger.Initialize(jsonOut, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().String("config", "", "Explicit config file (skips the discovery cascade)")

	rootCmd.AddCommand(commands.ScanCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
