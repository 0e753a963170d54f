// Package errors provides error handling for opgen.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for the person running the generator
//
// Usage:
//
//	if err := provider.Load(ctx); err != nil {
//	    return errors.Wrap(err, "failed to load type graph")
//	}
//
//	return errors.WithHint(err, "check the embedded base type")
//
// Faults caused by malformed type graphs wrap ErrInputContract so callers can
// tell them apart from I/O and configuration failures with errors.Is.
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
	Mark        = crdb.Mark
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Sentinel errors for type graph faults.
// Every fault below is also marked with ErrInputContract.
var (
	// ErrInputContract indicates the type graph handed to the generator is malformed
	ErrInputContract = New("input contract violation")

	// ErrCycle indicates an inheritance chain that loops back on itself
	ErrCycle = New("inheritance cycle")

	// ErrDanglingBase indicates a base type reference with no declaration in the snapshot
	ErrDanglingBase = New("dangling base type reference")

	// ErrArityMismatch indicates a base type referenced with the wrong number of type arguments
	ErrArityMismatch = New("type argument count mismatch")

	// ErrDuplicateType indicates two declarations sharing one qualified name
	ErrDuplicateType = New("duplicate type declaration")

	// ErrInvalidConfig indicates the generator configuration cannot be used
	ErrInvalidConfig = New("invalid configuration")
)

// Contract wraps cause as an input contract violation with a formatted message.
// The result matches both cause and ErrInputContract under Is.
func Contract(cause error, format string, args ...interface{}) error {
	return Mark(Wrapf(cause, format, args...), ErrInputContract)
}

// IsInputContractError checks if an error is or wraps ErrInputContract
func IsInputContractError(err error) bool {
	return err != nil && Is(err, ErrInputContract)
}

// NewInvalidConfigError creates an invalid-configuration error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}
