package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Compiler Entry Points
// =============================================================================

// Compile parses compose YAML and applies the key policy, producing a
// normalised Plan plus accumulated diagnostics.
//
// This is a pure function: repeated calls on the same input produce equal
// results. A Plan is returned even when errors are present - callers
// decide whether to proceed.
func Compile(yamlText, stackName string) CompileResult {
	result := CompileResult{
		Plan: Plan{
			StackName: stackName,
			Services:  map[string]ServicePlan{},
		},
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
	}

	if strings.TrimSpace(yamlText) == "" {
		result.Errors = append(result.Errors, Diagnostic{
			Message: "Empty compose file",
		})
		return result
	}

	var root any
	if err := yaml.Unmarshal([]byte(yamlText), &root); err != nil {
		result.Errors = append(result.Errors, Diagnostic{
			Message: err.Error(),
		})
		return result
	}

	doc, ok := root.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, Diagnostic{
			Message: "Invalid compose file: not an object",
		})
		return result
	}

	for _, key := range sortedKeys(doc) {
		if !supportedTopLevelKeys[key] {
			result.Errors = append(result.Errors, Diagnostic{
				Key:     key,
				Path:    key,
				Message: fmt.Sprintf("Unsupported top-level key: %s", key),
			})
		}
	}

	services, ok := doc["services"].(map[string]any)
	if !ok || services == nil {
		result.Errors = append(result.Errors, Diagnostic{
			Key:     "services",
			Path:    "services",
			Message: "No services defined",
		})
		return result
	}

	for _, name := range sortedKeys(services) {
		compileService(name, services[name], &result)
	}

	result.Plan.Networks = namedSetKeys(doc["networks"])
	result.Plan.Volumes = namedSetKeys(doc["volumes"])

	return result
}

// Validate runs the compiler and returns only its diagnostics.
// Used by the compatibility-check entry point; the plan is discarded.
func Validate(yamlText, stackName string) (errs, warnings []Diagnostic) {
	result := Compile(yamlText, stackName)
	return result.Errors, result.Warnings
}

// =============================================================================
// Service Compilation
// =============================================================================

func compileService(name string, raw any, result *CompileResult) {
	path := "services." + name

	svc, ok := raw.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, Diagnostic{
			Key:     name,
			Path:    path,
			Message: "Service definition must be an object",
		})
		return
	}

	for _, key := range sortedKeys(svc) {
		switch {
		case blockedServiceKeys[key]:
			result.Errors = append(result.Errors, Diagnostic{
				Key:     key,
				Path:    path + "." + key,
				Message: fmt.Sprintf("Unsupported key: %s is not supported by the container runtime", key),
			})
		case !supportedServiceKeys[key]:
			result.Warnings = append(result.Warnings, Diagnostic{
				Key:     key,
				Path:    path + "." + key,
				Message: fmt.Sprintf("Unknown key: %s ignored", key),
			})
		}
	}

	image := stringify(svc["image"])
	if image == "" {
		result.Errors = append(result.Errors, Diagnostic{
			Key:     "image",
			Path:    path + ".image",
			Message: "Service has no image",
		})
		return
	}

	if _, present := svc["restart"]; present {
		result.Warnings = append(result.Warnings, Diagnostic{
			Key:     "restart",
			Path:    path + ".restart",
			Message: "restart is parsed but not enforced by the container runtime",
		})
	}

	plan := ServicePlan{
		Image:       image,
		Command:     stringify(svc["command"]),
		Environment: normaliseEnvironment(svc["environment"]),
		WorkingDir:  stringify(svc["working_dir"]),
		User:        stringify(svc["user"]),
		Ports:       stringSequence(svc["ports"]),
		Volumes:     stringSequence(svc["volumes"]),
		Networks:    stringSequence(svc["networks"]),
		DependsOn:   normaliseDependsOn(path, svc["depends_on"], result),
	}

	validatePortSpecs(path, plan.Ports, result)

	result.Plan.Services[name] = plan
}

// validatePortSpecs warns about port mappings the runtime will reject.
// Advisory only: the authoritative parse happens inside the runtime CLI.
func validatePortSpecs(path string, ports []string, result *CompileResult) {
	for i, spec := range ports {
		if _, err := nat.ParsePortSpec(spec); err != nil {
			result.Warnings = append(result.Warnings, Diagnostic{
				Key:     "ports",
				Path:    fmt.Sprintf("%s.ports[%d]", path, i),
				Message: fmt.Sprintf("Port mapping %q may be rejected by the runtime: %v", spec, err),
			})
		}
	}
}

// =============================================================================
// Normalisation Helpers
// =============================================================================

// normaliseEnvironment accepts both compose environment forms:
// a mapping (null values become empty strings) or a sequence of
// KEY=VALUE items (no '=' means an empty value).
func normaliseEnvironment(raw any) map[string]string {
	switch v := raw.(type) {
	case map[string]any:
		env := make(map[string]string, len(v))
		for key, val := range v {
			env[key] = stringify(val)
		}
		return env
	case []any:
		env := make(map[string]string, len(v))
		for _, item := range v {
			entry := stringify(item)
			if entry == "" {
				continue
			}
			key, val, found := strings.Cut(entry, "=")
			if !found {
				env[key] = ""
				continue
			}
			env[key] = val
		}
		return env
	default:
		return nil
	}
}

// normaliseDependsOn accepts the sequence form as-is and flattens the
// mapping form to its keys, warning that conditions are ignored.
func normaliseDependsOn(path string, raw any, result *CompileResult) []string {
	switch v := raw.(type) {
	case []any:
		deps := make([]string, 0, len(v))
		for _, item := range v {
			deps = append(deps, stringify(item))
		}
		return deps
	case map[string]any:
		result.Warnings = append(result.Warnings, Diagnostic{
			Key:     "depends_on",
			Path:    path + ".depends_on",
			Message: "depends_on conditions are ignored; only ordering is honoured",
		})
		deps := sortedKeys(v)
		return deps
	default:
		return nil
	}
}

// namedSetKeys projects a top-level networks/volumes mapping onto its
// sorted key list. Non-mapping values yield nothing.
func namedSetKeys(raw any) []string {
	set, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return sortedKeys(set)
}

// stringSequence stringifies every element of a YAML sequence.
// Anything other than a sequence yields nothing.
func stringSequence(raw any) []string {
	seq, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		out = append(out, stringify(item))
	}
	return out
}

// stringify renders a scalar YAML value as a string. Nil becomes "".
func stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
