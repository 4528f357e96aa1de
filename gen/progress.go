package gen

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/fplgen/fplgen/fpl"
)

// ProgressEmitter receives pipeline progress as it happens.
//
// Implementations include:
// - CLIEmitter: pretty-printed terminal output using pterm
// - JSONEmitter: structured JSON events for tooling consumption
type ProgressEmitter interface {
	// EmitStage announces a pipeline stage transition.
	EmitStage(stage string, message string)

	// EmitProgram announces generation starting for one definition file.
	EmitProgram(program *fpl.Program)

	// EmitComplete reports the run summary.
	EmitComplete(summary map[string]interface{})

	// EmitError reports a failure in a stage.
	EmitError(stage string, err error)

	// EmitInfo reports an informational message.
	EmitInfo(message string)
}

// ProgressEvent represents a structured JSON progress event
type ProgressEvent struct {
	Type      string                 `json:"type"`      // "stage", "program", "complete", "error", "info"
	Timestamp time.Time              `json:"timestamp"` // When this event occurred
	Data      map[string]interface{} `json:"data"`      // Event-specific data
}

// CLIEmitter outputs pretty-printed progress to terminal using pterm
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a CLI progress emitter for terminal output
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

// EmitStage prints a stage announcement to terminal
func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(stage), message)
}

// EmitProgram prints the definition file being generated
func (e *CLIEmitter) EmitProgram(program *fpl.Program) {
	if e.verbosity >= 1 {
		pterm.Printf("⚙️  Generating %s (%s)\n", pterm.Cyan(program.InputPath), program.OutputRelPath)
		return
	}
	pterm.Printf("⚙️  Generating %s\n", pterm.Cyan(program.InputPath))
}

// EmitComplete prints completion summary
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Success.Println("Generation complete!")
	if e.verbosity >= 1 {
		for key, value := range summary {
			pterm.Printf("  %s: %v\n", key, value)
		}
	}
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints informational message
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.Println(message)
	}
}

// JSONEmitter outputs structured JSON events to stdout
type JSONEmitter struct {
	encoder *json.Encoder
}

// NewJSONEmitter creates a JSON progress emitter for structured output
func NewJSONEmitter() *JSONEmitter {
	return &JSONEmitter{
		encoder: json.NewEncoder(os.Stdout),
	}
}

// EmitStage emits a stage event as JSON
func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.encoder.Encode(ProgressEvent{
		Type:      "stage",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"stage":   stage,
			"message": message,
		},
	})
}

// EmitProgram emits a program generation event as JSON
func (e *JSONEmitter) EmitProgram(program *fpl.Program) {
	e.encoder.Encode(ProgressEvent{
		Type:      "program",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"input":     program.InputPath,
			"namespace": program.Namespace,
			"output":    program.OutputRelPath,
		},
	})
}

// EmitComplete emits a completion event as JSON
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.encoder.Encode(ProgressEvent{
		Type:      "complete",
		Timestamp: time.Now(),
		Data:      summary,
	})
}

// EmitError emits an error event as JSON
func (e *JSONEmitter) EmitError(stage string, err error) {
	e.encoder.Encode(ProgressEvent{
		Type:      "error",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		},
	})
}

// EmitInfo emits an info event as JSON
func (e *JSONEmitter) EmitInfo(message string) {
	e.encoder.Encode(ProgressEvent{
		Type:      "info",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": message,
		},
	})
}

// nopEmitter swallows all progress. Used when no emitter is configured.
type nopEmitter struct{}

func (nopEmitter) EmitStage(string, string) {}
func (nopEmitter) EmitProgram(*fpl.Program) {}
func (nopEmitter) EmitComplete(map[string]interface{}) {}
func (nopEmitter) EmitError(string, error) {}
func (nopEmitter) EmitInfo(string) {}
