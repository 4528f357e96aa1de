package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across fplgen.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Components
	FieldComponent = "component"

	// Programs and namespaces
	FieldProgram   = "program"
	FieldNamespace = "namespace"

	// Files and paths
	FieldFile      = "file"
	FieldPath      = "path"
	FieldSourceDir = "source_dir"
	FieldOutputDir = "output_dir"
	FieldPattern   = "pattern"

	// Generator runs
	FieldSession   = "session"
	FieldGenerator = "generator"
	FieldExitCode  = "exit_code"

	// Timing
	FieldDurationMS = "duration_ms"

	// Counts
	FieldCount = "count"
	FieldStale = "stale"

	// Errors
	FieldError = "error"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Pipeline struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewPipeline() *Pipeline {
//	    return &Pipeline{
//	        logger: logger.ComponentLogger("gen.pipeline"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	runLogger := logger.ChildLogger(baseLogger, logger.FieldSession, sessionID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
