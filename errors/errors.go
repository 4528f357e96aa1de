// Package errors provides error handling for fplgen.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "check that the source directory exists")
//
//	// Check error kinds
//	if errors.IsScanError(err) {
//	    // an I/O failure interrupted the scan
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	Mark         = crdb.Mark
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapOnce    = crdb.UnwrapOnce
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Error kinds for the scan/generate pipeline.
// Use these with errors.Is() for type-safe error checking.
// Mark causes with them (WrapScan, WrapConfiguration) to classify an error
// while keeping the underlying chain intact.
var (
	// ErrConfiguration indicates invalid caller-supplied configuration,
	// detected by validation before any filesystem access
	ErrConfiguration = New("invalid configuration")

	// ErrScan indicates an I/O failure while enumerating or reading
	// definition files; the cause is preserved in the chain
	ErrScan = New("scan failed")

	// ErrGenerate indicates the external generator failed for a program
	// that was handed to it
	ErrGenerate = New("generation failed")
)

// IsConfigurationError checks if an error is or wraps ErrConfiguration
func IsConfigurationError(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// IsScanError checks if an error is or wraps ErrScan
func IsScanError(err error) bool {
	return err != nil && Is(err, ErrScan)
}

// IsGenerateError checks if an error is or wraps ErrGenerate
func IsGenerateError(err error) bool {
	return err != nil && Is(err, ErrGenerate)
}

// NewConfigurationError creates a configuration error with a formatted message
func NewConfigurationError(format string, args ...interface{}) error {
	return Wrap(ErrConfiguration, Newf(format, args...).Error())
}

// NewGenerateError creates a generation error with a formatted message
func NewGenerateError(format string, args ...interface{}) error {
	return Wrap(ErrGenerate, Newf(format, args...).Error())
}

// WrapConfiguration classifies err as a configuration error with context,
// preserving the underlying chain for Is/As checks
func WrapConfiguration(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrConfiguration)
}

// WrapScan classifies err as a scan error with context, preserving the
// underlying chain for Is/As checks
func WrapScan(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrScan)
}

// WrapGenerate classifies err as a generation error with context, preserving
// the underlying chain for Is/As checks
func WrapGenerate(err error, context string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, context), ErrGenerate)
}
