package adapter

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// Log Streaming
// =============================================================================

// Logs streams a service container's log output. The sequence is lazy and
// potentially infinite with Follow; re-invoking restarts it. Cancelling
// ctx terminates the child process and ends the stream.
func (a *Apple) Logs(ctx context.Context, stackName, serviceName string, opts LogOptions) (io.ReadCloser, error) {
	containerName, err := a.resolveContainer(stackName, serviceName)
	if err != nil {
		return nil, err
	}

	args := []string{"logs"}
	if opts.Tail > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Tail))
	}
	if opts.Follow {
		args = append(args, "--follow")
	}
	args = append(args, containerName)

	return a.driver.Stream(ctx, args...)
}

// =============================================================================
// Exec
// =============================================================================

// Exec produces the invocation the terminal layer spawns for an
// interactive session inside a service container.
func (a *Apple) Exec(stackName, serviceName, command string) (ExecInvocation, error) {
	containerName, err := a.resolveContainer(stackName, serviceName)
	if err != nil {
		return ExecInvocation{}, err
	}

	words, err := shellwords.Parse(command)
	if err != nil {
		return ExecInvocation{}, fmt.Errorf("invalid command %q: %w", command, err)
	}
	if len(words) == 0 {
		words = []string{"/bin/sh"}
	}

	args := append([]string{"exec", "-it", containerName}, words...)
	return ExecInvocation{
		SessionID: uuid.NewString(),
		Command:   "container",
		Args:      args,
	}, nil
}

// resolveContainer maps (stack, service) to a container name: the lock
// record when present, the naming convention otherwise.
func (a *Apple) resolveContainer(stackName, serviceName string) (string, error) {
	if record := a.locks.Read(stackName); record != nil {
		if svc, ok := record.Services[serviceName]; ok {
			return svc.ContainerName, nil
		}
		if serviceName == "" {
			names := record.ContainerNames()
			if len(names) == 1 {
				return names[0], nil
			}
		}
		return "", fmt.Errorf("service %s not found in stack %s", serviceName, stackName)
	}
	if serviceName == "" {
		return stackName, nil
	}
	return deployment.ContainerName(stackName, serviceName, deployment.DefaultIndex), nil
}
