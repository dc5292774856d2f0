// Package adapter translates plan operations into runtime CLI
// invocations. This is part of the Imperative Shell.
//
// The RuntimeAdapter interface is the only capability set the engine
// needs; the Apple Container implementation is one variant and a fake
// driver supports tests.
package adapter

import (
	"context"
	"io"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// Adapter Interface
// =============================================================================

// ImageInfo is one local image with its usage count.
type ImageInfo struct {
	Reference  string `json:"reference"`
	Digest     string `json:"digest,omitempty"`
	InUseCount int    `json:"inUseCount"`
}

// ExecInvocation describes a child process for the terminal layer to
// spawn. The adapter never spawns interactive sessions itself.
type ExecInvocation struct {
	SessionID string   `json:"sessionId"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
}

// LogOptions controls log streaming.
type LogOptions struct {
	Tail   int  // 0 means the runtime default
	Follow bool
}

// RuntimeAdapter is the capability set the stack engine drives.
type RuntimeAdapter interface {
	// Available probes the runtime (`system status`, exit 0 = available).
	Available(ctx context.Context) bool

	// Version returns the runtime version string.
	Version(ctx context.Context) (string, error)

	// Deploy realises a plan: pulls images and creates containers in
	// dependency order, then writes a fresh lock record. Containers
	// created before a failure are not rolled back.
	Deploy(ctx context.Context, plan compose.Plan) error

	// Start starts a stack's containers, narrowed to serviceName when
	// non-empty.
	Start(ctx context.Context, stackName, serviceName string) error

	// Stop stops a stack's containers, narrowed to serviceName when
	// non-empty.
	Stop(ctx context.Context, stackName, serviceName string) error

	// Restart stops then starts.
	Restart(ctx context.Context, stackName, serviceName string) error

	// Down stops and deletes a stack's containers, optionally deleting
	// its declared volumes, and removes the lock record.
	Down(ctx context.Context, stackName string, removeVolumes bool) error

	// PullImage fetches an image, tolerating pull failure when the image
	// already exists locally. Local-only references are never pulled.
	PullImage(ctx context.Context, ref string) error

	// ServiceStatusList reports per-service container status for one
	// stack.
	ServiceStatusList(ctx context.Context, stackName string) (map[string]deployment.ContainerStatus, error)

	// AllStackStatus reports the rolled-up status of every stack the
	// runtime or the lock store knows about.
	AllStackStatus(ctx context.Context) (map[string]deployment.StackStatus, error)

	// ImageList returns local images with usage counts attached.
	ImageList(ctx context.Context) ([]ImageInfo, error)

	// DeleteImage removes an unused image. Images with a non-zero usage
	// count are refused.
	DeleteImage(ctx context.Context, ref string) error

	// NetworkList returns the names of the runtime's networks.
	NetworkList(ctx context.Context) ([]string, error)

	// Logs streams a service container's log output. Chunks arrive in
	// the order the child emits them; the stream ends when the child
	// exits and is cancelled through ctx.
	Logs(ctx context.Context, stackName, serviceName string, opts LogOptions) (io.ReadCloser, error)

	// Exec describes an interactive exec invocation for the terminal
	// layer.
	Exec(stackName, serviceName, command string) (ExecInvocation, error)
}
