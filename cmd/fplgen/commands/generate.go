package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate fuzzers for stale definition files",
	Long: `Scan the source tree and invoke the external generator for every
definition file whose generated fuzzer is stale.

Generation stops at the first definition file the generator rejects, so a
broken grammar never hides behind later successes. When everything is
already up to date the generator is not invoked at all.

Examples:
  fplgen generate                   # Regenerate what scan reports stale
  fplgen generate --force           # Regenerate every definition file
  fplgen generate --package com.acme.fuzz
  fplgen generate --package ""      # Force the root namespace`,
	RunE: runGenerate,
}

func init() {
	addScanFlags(GenerateCmd)
	GenerateCmd.Flags().Bool("force", false, "Regenerate every matched definition file, stale or not")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, projectRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	force, _ := cmd.Flags().GetBool("force")
	pipeline, err := buildPipeline(cmd, cfg, projectRoot, force)
	if err != nil {
		return err
	}

	_, err = pipeline.Run(context.Background())
	return err
}
