package compose

// =============================================================================
// Plan - Main Output Type
// =============================================================================

// Plan is the normalised deployment plan produced by the compiler.
// It is a value object: immutable after construction, decoupled from the
// raw YAML representation. The adapter acts on Plans, never on YAML.
type Plan struct {
	StackName string                 `json:"stackName"`
	Services  map[string]ServicePlan `json:"services"`
	Networks  []string               `json:"networks,omitempty"`
	Volumes   []string               `json:"volumes,omitempty"`
}

// ServicePlan represents a single normalised service definition.
// Iteration order over Plan.Services is not semantic; deployment order is
// derived from DependsOn.
type ServicePlan struct {
	Image       string            `json:"image"`
	Command     string            `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Ports       []string          `json:"ports,omitempty"`
	Volumes     []string          `json:"volumes,omitempty"`
	Networks    []string          `json:"networks,omitempty"`
	WorkingDir  string            `json:"workingDir,omitempty"`
	User        string            `json:"user,omitempty"`
	DependsOn   []string          `json:"dependsOn,omitempty"`
}

// =============================================================================
// Diagnostics
// =============================================================================

// Diagnostic is a single compiler finding, anchored to a dotted path
// within the compose document (e.g. "services.web.deploy").
type Diagnostic struct {
	Key     string `json:"key"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Path != "" {
		return d.Path + ": " + d.Message
	}
	return d.Message
}

// CompileResult bundles the plan with everything the compiler found.
// Errors is non-empty iff the plan must not be deployed; Warnings is
// advisory. A plan is returned even when Errors is non-empty - callers
// decide whether to proceed.
type CompileResult struct {
	Plan     Plan         `json:"plan"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
}

// HasErrors reports whether the result forbids deployment.
func (r CompileResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// =============================================================================
// Key Policy Tables
// =============================================================================

// supportedServiceKeys is the closed set of service-level keys the target
// runtime can honour. Keys outside this set and outside the blocked set
// produce warnings and are ignored.
var supportedServiceKeys = map[string]bool{
	"image":          true,
	"command":        true,
	"entrypoint":     true,
	"environment":    true,
	"env_file":       true,
	"ports":          true,
	"volumes":        true,
	"networks":       true,
	"working_dir":    true,
	"user":           true,
	"depends_on":     true,
	"container_name": true,
	"stdin_open":     true,
	"tty":            true,
	"restart":        true,
}

// blockedServiceKeys are compose features the runtime cannot honour at all.
// Their presence is an error, not a warning: silently dropping them would
// deploy something materially different from what the user wrote.
var blockedServiceKeys = map[string]bool{
	"deploy":         true,
	"profiles":       true,
	"secrets":        true,
	"configs":        true,
	"healthcheck":    true,
	"build":          true,
	"cap_add":        true,
	"cap_drop":       true,
	"cgroup_parent":  true,
	"devices":        true,
	"dns":            true,
	"dns_search":     true,
	"domainname":     true,
	"external_links": true,
	"extra_hosts":    true,
	"init":           true,
	"ipc":            true,
	"isolation":      true,
	"labels":         true,
	"links":          true,
	"logging":        true,
	"network_mode":   true,
	"pid":            true,
	"platform":       true,
	"privileged":     true,
	"read_only":      true,
	"security_opt":   true,
	"shm_size":       true,
	"sysctls":        true,
	"tmpfs":          true,
	"ulimits":        true,
	"userns_mode":    true,
}

// supportedTopLevelKeys is the closed set of accepted document roots.
var supportedTopLevelKeys = map[string]bool{
	"services": true,
	"networks": true,
	"volumes":  true,
	"version":  true,
	"name":     true,
}
