package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrRuntimeUnavailable is returned when the CLI probe fails.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrContainerNotFound is matched against CLI stderr for the
	// start-then-deploy fallback.
	ErrContainerNotFound = errors.New("container not found")

	// ErrImageNotFound is returned for missing images.
	ErrImageNotFound = errors.New("image not found")

	// ErrImageInUse is returned when deleting an image with containers.
	ErrImageInUse = errors.New("image is in use")
)

// CommandError wraps a non-zero CLI exit with the invocation context.
type CommandError struct {
	Op       string // operation that failed, e.g. "deploy"
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = fmt.Sprintf("exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("%s: container %s: %s", e.Op, strings.Join(e.Args, " "), detail)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError from a failed invocation.
func NewCommandError(op string, args []string, result Result, err error) *CommandError {
	return &CommandError{
		Op:       op,
		Args:     args,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
		Err:      err,
	}
}
