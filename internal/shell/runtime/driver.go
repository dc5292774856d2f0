// Package runtime drives the external container CLI.
// This is part of the Imperative Shell - it forks child processes and
// parses their output; there is no native runtime API.
package runtime

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
)

// =============================================================================
// Driver Interface
// =============================================================================

// Result is the captured outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Ok reports whether the invocation exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Driver runs the container CLI. Arguments pass through unchanged: no
// shell interpolation, no quoting. Tests inject a fake driver returning
// prerecorded results.
type Driver interface {
	// Run executes the CLI and waits for completion, capturing full
	// stdout, stderr and the exit code. Spawn failure surfaces as exit
	// code 1 with empty stdout.
	Run(ctx context.Context, args ...string) Result

	// Stream executes the CLI and returns its stdout as a byte stream.
	// Stderr is merged in. The stream ends when the child exits and is
	// cancelled by cancelling ctx, which terminates the child.
	Stream(ctx context.Context, args ...string) (io.ReadCloser, error)
}

// =============================================================================
// CLI Driver
// =============================================================================

// CLIDriver implements Driver by forking a binary (normally "container").
type CLIDriver struct {
	binary string
	logger *slog.Logger
}

// NewCLIDriver creates a driver for the given binary.
func NewCLIDriver(binary string, logger *slog.Logger) *CLIDriver {
	if binary == "" {
		binary = "container"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIDriver{
		binary: binary,
		logger: logger.With("component", "runtime_driver"),
	}
}

// Run executes the CLI with the given arguments.
func (d *CLIDriver) Run(ctx context.Context, args ...string) Result {
	cmd := exec.CommandContext(ctx, d.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case cmd.ProcessState != nil:
		result.ExitCode = cmd.ProcessState.ExitCode()
	default:
		// Spawn failure: the binary never ran.
		result.ExitCode = 1
		result.Stdout = ""
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
	}

	d.logger.Debug("cli invocation",
		"args", args,
		"exit_code", result.ExitCode,
	)
	return result
}

// Stream executes the CLI and returns its combined output as a stream.
func (d *CLIDriver) Stream(ctx context.Context, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, d.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	d.logger.Debug("cli stream started", "args", args)

	// Reap the child once the stream is drained or cancelled.
	go func() {
		_ = cmd.Wait()
	}()

	return stdout, nil
}
