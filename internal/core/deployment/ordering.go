package deployment

import (
	"sort"

	"github.com/dockgeac/dockgeac/internal/core/compose"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// DeployOrder sorts a plan's services by their dependencies using Kahn's
// algorithm. Services with no dependencies come first, ties broken
// alphabetically so the order is deterministic.
//
// Edges to services that do not exist in the plan are ignored. If a cycle
// exists the remaining services are appended in name order as a fallback;
// cycles are not reported.
//
// Example:
//
//	// web depends_on api, api depends_on db
//	DeployOrder(plan) // ["db", "api", "web"]
func DeployOrder(plan compose.Plan) []string {
	if len(plan.Services) == 0 {
		return nil
	}

	inDegree := make(map[string]int, len(plan.Services))
	dependents := make(map[string][]string)

	for name, svc := range plan.Services {
		degree := 0
		for _, dep := range svc.DependsOn {
			if _, exists := plan.Services[dep]; !exists {
				continue
			}
			degree++
			dependents[dep] = append(dependents[dep], name)
		}
		inDegree[name] = degree
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// Cycle fallback: visitation order over the remainder.
	if len(order) < len(plan.Services) {
		placed := make(map[string]bool, len(order))
		for _, name := range order {
			placed[name] = true
		}
		var remaining []string
		for name := range plan.Services {
			if !placed[name] {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		order = append(order, remaining...)
	}

	return order
}
