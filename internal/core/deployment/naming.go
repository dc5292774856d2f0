package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// NamePrefix is the prefix every managed container name carries.
// The prefix and separator are part of the external contract: tooling
// recovers stack membership from them when no lock record exists.
const NamePrefix = "dockgeac_"

// ReservedStackName is excluded from all status listings.
const ReservedStackName = "dockge"

// DefaultIndex is the replica index used for single-instance services.
const DefaultIndex = 1

// ContainerName generates a container name for a service in a stack.
// Pattern: dockgeac_{stack}_{service}_{index}
//
// Example:
//
//	ContainerName("blog", "web", 1) // returns "dockgeac_blog_web_1"
func ContainerName(stackName, serviceName string, index int) string {
	return fmt.Sprintf("%s%s_%s_%d", NamePrefix, stackName, serviceName, index)
}

// InferStackName recovers the stack a container belongs to from its name.
// Used only as a fallback when no lock record exists; lock records are
// authoritative for ownership.
//
// Example:
//
//	InferStackName("dockgeac_blog_web_1") // returns "blog", true
//	InferStackName("redis")               // returns "", false
func InferStackName(containerName string) (string, bool) {
	if !strings.HasPrefix(containerName, NamePrefix) {
		return "", false
	}
	tail := strings.TrimPrefix(containerName, NamePrefix)
	stack, _, _ := strings.Cut(tail, "_")
	if stack == "" {
		return "", false
	}
	return stack, true
}
