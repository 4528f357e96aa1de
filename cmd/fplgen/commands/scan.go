package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/fplgen/fplgen/display"
	"github.com/fplgen/fplgen/fpl"
)

// ScanCmd represents the scan command
var ScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List definition files whose generated output is stale",
	Long: `Scan the source tree for fuzzer definition files and report which ones
need regeneration.

A definition file is stale when its generated fuzzer is missing from the
output directory, or older than the definition (allowing for the configured
timestamp tolerance). The scan only reports; nothing is generated and the
exit code is 0 whether or not stale files exist.

Examples:
  fplgen scan                     # Report against the configured output dir
  fplgen scan --json              # Machine-readable report
  fplgen scan --source grammars   # Scan a different source tree`,
	RunE: runScan,
}

func init() {
	addScanFlags(ScanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, projectRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	sc := cfg.ScanConfig(projectRoot)
	scanner, err := fpl.NewScanner(sc)
	if err != nil {
		return err
	}

	stale, err := scanner.Scan()
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return outputScanJSON(sc.SourceDir, scanner.Matched(), stale)
	}

	if len(stale) == 0 {
		pterm.Success.Printf("All %d definition file(s) are up to date\n", scanner.Matched())
		return nil
	}

	pterm.Printf("%d of %d definition file(s) need regeneration:\n", len(stale), scanner.Matched())
	for _, prog := range stale {
		namespace := prog.Namespace
		if namespace == "" {
			namespace = "(root)"
		}
		pterm.Printf("  %s %s %s %s\n",
			pterm.Gray("→"),
			pterm.LightGreen(prog.InputPath),
			pterm.Yellow(namespace),
			pterm.Gray(prog.OutputRelPath))
	}
	return nil
}

func outputScanJSON(sourceDir string, matched int, stale []*fpl.Program) error {
	type staleProgram struct {
		Input     string `json:"input"`
		Namespace string `json:"namespace"`
		Output    string `json:"output"`
	}
	report := struct {
		SourceDir string         `json:"source_dir"`
		Matched   int            `json:"matched"`
		Stale     []staleProgram `json:"stale"`
	}{
		SourceDir: sourceDir,
		Matched:   matched,
		Stale:     make([]staleProgram, 0, len(stale)),
	}
	for _, prog := range stale {
		report.Stale = append(report.Stale, staleProgram{
			Input:     prog.InputPath,
			Namespace: prog.Namespace,
			Output:    prog.OutputRelPath,
		})
	}
	return display.OutputJSON(report)
}
