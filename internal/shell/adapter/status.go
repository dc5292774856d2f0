package adapter

import (
	"context"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
)

// =============================================================================
// Status Reporting
// =============================================================================

// ServiceStatusList reports the container status of each of a stack's
// services.
//
// With a lock record, each listed service maps to its observed container
// or a synthetic unknown placeholder when the container has vanished.
// Without one, every observed container whose name equals the stack name
// or whose inferred prefix matches is returned keyed by container name.
func (a *Apple) ServiceStatusList(ctx context.Context, stackName string) (map[string]deployment.ContainerStatus, error) {
	result := a.driver.Run(ctx, "list", "--all", "--format", "json")
	if !result.Ok() {
		return nil, runtime.NewCommandError("list containers", []string{"list", "--all", "--format", "json"}, result, nil)
	}

	observed := map[string]deployment.ContainerStatus{}
	for _, status := range runtime.ContainerStatuses(result.Stdout) {
		observed[status.Name] = status
	}

	statuses := map[string]deployment.ContainerStatus{}

	record := a.locks.Read(stackName)
	if record != nil {
		for serviceName, svc := range record.Services {
			if status, ok := observed[svc.ContainerName]; ok {
				statuses[serviceName] = status
				continue
			}
			statuses[serviceName] = deployment.ContainerStatus{
				Name:  svc.ContainerName,
				State: deployment.StateUnknown,
			}
		}
		return statuses, nil
	}

	for name, status := range observed {
		if name == stackName {
			statuses[name] = status
			continue
		}
		if inferred, ok := deployment.InferStackName(name); ok && inferred == stackName {
			statuses[name] = status
		}
	}
	return statuses, nil
}

// AllStackStatus rolls up the status of every known stack.
//
// Lock records are authoritative for container ownership; the naming
// convention is a fallback, and an unprefixed container counts as a
// single-container stack under its own name. Locked stacks with no
// observed containers report unknown.
func (a *Apple) AllStackStatus(ctx context.Context) (map[string]deployment.StackStatus, error) {
	result := a.driver.Run(ctx, "list", "--all", "--format", "json")
	if !result.Ok() {
		return nil, runtime.NewCommandError("list containers", []string{"list", "--all", "--format", "json"}, result, nil)
	}

	// container name -> owning stack, from every lock record.
	owners := map[string]string{}
	lockedStacks := a.locks.ListAll()
	for _, stackName := range lockedStacks {
		record := a.locks.Read(stackName)
		if record == nil {
			continue
		}
		for _, svc := range record.Services {
			owners[svc.ContainerName] = stackName
		}
	}

	grouped := map[string][]deployment.ContainerStatus{}
	for _, status := range runtime.ContainerStatuses(result.Stdout) {
		stackName, ok := owners[status.Name]
		if !ok {
			stackName, ok = deployment.InferStackName(status.Name)
			if !ok {
				stackName = status.Name
			}
		}
		if stackName == deployment.ReservedStackName {
			continue
		}
		grouped[stackName] = append(grouped[stackName], status)
	}

	statuses := map[string]deployment.StackStatus{}
	for stackName, containers := range grouped {
		statuses[stackName] = deployment.Rollup(containers)
	}
	for _, stackName := range lockedStacks {
		if _, seen := statuses[stackName]; !seen {
			statuses[stackName] = deployment.StatusUnknown
		}
	}
	return statuses, nil
}
