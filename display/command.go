package display

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// ShouldOutputJSON determines if a command should output JSON based on its
// own --json flag, the root persistent --json flag, and the FPLGEN_JSON
// environment variable, in that order
func ShouldOutputJSON(cmd *cobra.Command) bool {
	// Handle nil command gracefully (e.g., when called from result rendering without command context)
	if cmd == nil {
		return envWantsJSON()
	}

	// Check if --json flag was explicitly set
	if cmd.Flags().Changed("json") {
		if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
			return true
		}
		return false
	}

	// Check global --json flag
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return envWantsJSON()
}

// envWantsJSON reports whether FPLGEN_JSON requests machine output
func envWantsJSON() bool {
	v := os.Getenv("FPLGEN_JSON")
	if v == "" {
		return false
	}
	want, err := strconv.ParseBool(v)
	return err == nil && want
}

// OutputJSON marshals and prints JSON using display.MarshalJSON
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
