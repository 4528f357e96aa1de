package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fplgen/fplgen/display"
	"github.com/fplgen/fplgen/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show fplgen version information",
	Long:  `Display version, build time, commit hash, and platform information for the fplgen binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()

		if display.ShouldOutputJSON(cmd) {
			if err := display.OutputJSON(info); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
			}
			return
		}

		fmt.Println(info.String())
		fmt.Printf("Platform: %s\n", info.Platform)
		fmt.Printf("Go: %s\n", info.GoVersion)
	},
}
