package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/core/deployment"
	"github.com/dockgeac/dockgeac/internal/shell/lockstore"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
)

// =============================================================================
// Apple Container Adapter
// =============================================================================

// Apple drives Apple's `container` CLI.
type Apple struct {
	driver runtime.Driver
	locks  *lockstore.Store
	logger *slog.Logger
}

// NewApple creates the adapter.
func NewApple(driver runtime.Driver, locks *lockstore.Store, logger *slog.Logger) *Apple {
	if logger == nil {
		logger = slog.Default()
	}
	return &Apple{
		driver: driver,
		locks:  locks,
		logger: logger.With("component", "adapter"),
	}
}

// Available probes the runtime.
func (a *Apple) Available(ctx context.Context) bool {
	return a.driver.Run(ctx, "system", "status").Ok()
}

// Version returns the runtime version string.
func (a *Apple) Version(ctx context.Context) (string, error) {
	result := a.driver.Run(ctx, "--version")
	if !result.Ok() {
		result = a.driver.Run(ctx, "version")
	}
	if !result.Ok() {
		return "", runtime.NewCommandError("version", []string{"version"}, result, runtime.ErrRuntimeUnavailable)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy creates the plan's containers serially in dependency order.
// A failing service aborts the deploy; containers already created are
// left in place and recorded so down() can clean them up.
func (a *Apple) Deploy(ctx context.Context, plan compose.Plan) error {
	order := deployment.DeployOrder(plan)

	record := &lockstore.LockRecord{
		StackName:    plan.StackName,
		Fingerprint:  "",
		Services:     map[string]lockstore.ServiceLock{},
		Networks:     plan.Networks,
		Volumes:      plan.Volumes,
		LastDeployed: lockstore.Now(),
	}

	for _, serviceName := range order {
		svc := plan.Services[serviceName]
		containerName := deployment.ContainerName(plan.StackName, serviceName, deployment.DefaultIndex)

		if err := a.PullImage(ctx, svc.Image); err != nil {
			return err
		}

		args, err := runArgs(containerName, svc)
		if err != nil {
			return fmt.Errorf("service %s: %w", serviceName, err)
		}

		a.logger.Info("creating container",
			"stack", plan.StackName,
			"service", serviceName,
			"container", containerName,
			"image", svc.Image,
		)

		result := a.driver.Run(ctx, args...)
		if !result.Ok() {
			// Record what was created before the failure, then abort.
			if len(record.Services) > 0 {
				if writeErr := a.locks.Write(plan.StackName, record); writeErr != nil {
					a.logger.Error("failed to record partial deploy", "stack", plan.StackName, "error", writeErr)
				}
			}
			return runtime.NewCommandError(
				fmt.Sprintf("deploy service %s", serviceName), args, result, nil)
		}

		record.Services[serviceName] = lockstore.ServiceLock{
			ContainerName: containerName,
			Image:         svc.Image,
			CreatedAt:     lockstore.Now(),
			ContainerID:   strings.TrimSpace(result.Stdout),
		}
	}

	return a.locks.Write(plan.StackName, record)
}

// runArgs builds the `run` invocation for one service. List order is
// preserved for every repeated flag; environment keys are sorted so the
// invocation is deterministic.
func runArgs(containerName string, svc compose.ServicePlan) ([]string, error) {
	args := []string{"run", "-d", "--name", containerName}

	for _, port := range svc.Ports {
		args = append(args, "-p", port)
	}

	envKeys := make([]string, 0, len(svc.Environment))
	for key := range svc.Environment {
		envKeys = append(envKeys, key)
	}
	sort.Strings(envKeys)
	for _, key := range envKeys {
		args = append(args, "-e", key+"="+svc.Environment[key])
	}

	for _, volume := range svc.Volumes {
		args = append(args, "-v", volume)
	}
	for _, network := range svc.Networks {
		args = append(args, "--network", network)
	}
	if svc.WorkingDir != "" {
		args = append(args, "-w", svc.WorkingDir)
	}
	if svc.User != "" {
		args = append(args, "--user", svc.User)
	}

	args = append(args, svc.Image)

	if svc.Command != "" {
		words, err := shellwords.Parse(svc.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid command %q: %w", svc.Command, err)
		}
		args = append(args, words...)
	}

	return args, nil
}

// =============================================================================
// Start / Stop / Restart
// =============================================================================

// Start starts the stack's containers.
func (a *Apple) Start(ctx context.Context, stackName, serviceName string) error {
	return a.eachTarget(ctx, "start", stackName, serviceName)
}

// Stop stops the stack's containers.
func (a *Apple) Stop(ctx context.Context, stackName, serviceName string) error {
	return a.eachTarget(ctx, "stop", stackName, serviceName)
}

// Restart stops then starts the stack's containers.
func (a *Apple) Restart(ctx context.Context, stackName, serviceName string) error {
	if err := a.eachTarget(ctx, "stop", stackName, serviceName); err != nil {
		return err
	}
	return a.eachTarget(ctx, "start", stackName, serviceName)
}

// eachTarget invokes one CLI verb per target container.
func (a *Apple) eachTarget(ctx context.Context, verb, stackName, serviceName string) error {
	for _, name := range a.targets(stackName, serviceName) {
		result := a.driver.Run(ctx, verb, name)
		if !result.Ok() {
			err := runtime.NewCommandError(verb, []string{verb, name}, result, nil)
			if strings.Contains(strings.ToLower(result.Stderr), "not found") {
				err.Err = runtime.ErrContainerNotFound
			}
			return err
		}
	}
	return nil
}

// targets resolves the container set an operation acts on.
//
// With a lock record the listed containers are authoritative, narrowed to
// one service when named. Without one, the bare stack name covers legacy
// externally created singletons - unless a service was named, in which
// case there is nothing to act on.
func (a *Apple) targets(stackName, serviceName string) []string {
	record := a.locks.Read(stackName)
	if record == nil {
		if serviceName != "" {
			return nil
		}
		return []string{stackName}
	}

	if serviceName != "" {
		if svc, ok := record.Services[serviceName]; ok {
			return []string{svc.ContainerName}
		}
		return nil
	}

	names := record.ContainerNames()
	sort.Strings(names)
	return names
}

// =============================================================================
// Down
// =============================================================================

// Down stops and deletes the stack's containers and removes its lock
// record. Stop failures are tolerated (the container may already be
// stopped); delete failures are not.
func (a *Apple) Down(ctx context.Context, stackName string, removeVolumes bool) error {
	record := a.locks.Read(stackName)
	if record == nil {
		// Externally created singleton: best-effort stop, then delete.
		a.driver.Run(ctx, "stop", stackName)
		result := a.driver.Run(ctx, "delete", stackName)
		if !result.Ok() {
			return runtime.NewCommandError("down", []string{"delete", stackName}, result, nil)
		}
		return nil
	}

	names := record.ContainerNames()
	sort.Strings(names)

	for _, name := range names {
		a.driver.Run(ctx, "stop", name)
	}
	for _, name := range names {
		result := a.driver.Run(ctx, "delete", name)
		if !result.Ok() {
			return runtime.NewCommandError("down", []string{"delete", name}, result, nil)
		}
	}

	if removeVolumes {
		for _, volume := range record.Volumes {
			result := a.driver.Run(ctx, "volume", "delete", volume)
			if !result.Ok() {
				return runtime.NewCommandError("down", []string{"volume", "delete", volume}, result, nil)
			}
		}
	}

	return a.locks.Delete(stackName)
}
