// Package compose contains the pure compose compiler.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrEmptyInput is returned for empty or whitespace-only documents.
	ErrEmptyInput = errors.New("empty compose file")

	// ErrInvalidYAML is returned when the document cannot be parsed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrNotAnObject is returned when the document root is not a mapping.
	ErrNotAnObject = errors.New("compose file is not an object")

	// ErrNoServices is returned when no services mapping is present.
	ErrNoServices = errors.New("no services defined")
)

// CompileError wraps a set of compiler diagnostics as a single error.
// The Stack Engine raises it when a deploy is attempted against a plan
// that carries errors.
type CompileError struct {
	StackName   string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msg := ""
	for i, d := range e.Diagnostics {
		if i > 0 {
			msg += "; "
		}
		msg += d.String()
	}
	return fmt.Sprintf("compose compile failed for %s: %s", e.StackName, msg)
}

// NewCompileError creates a CompileError from a result's error list.
func NewCompileError(stackName string, diags []Diagnostic) *CompileError {
	return &CompileError{StackName: stackName, Diagnostics: diags}
}
