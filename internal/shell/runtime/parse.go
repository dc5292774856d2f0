package runtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// JSON / JSONL Output Parsing
// =============================================================================

// builderRoleLabel marks runtime-internal builder containers, which are
// filtered from every listing.
const builderRoleLabel = "com.apple.container.resource.role"

// Records parses `--format json` output into generic records.
//
// The CLI emits either a single JSON document (object or array) or JSONL.
// Strategy: one full parse first; on failure or a non-array result, fall
// back to line-by-line parsing, dropping lines that fail to parse. A
// single object is wrapped as a one-element array.
func Records(output string) []map[string]any {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}

	var asArray []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &asArray); err == nil {
		return asArray
	}

	var asObject map[string]any
	if err := json.Unmarshal([]byte(trimmed), &asObject); err == nil {
		return []map[string]any{asObject}
	}

	var records []map[string]any
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// =============================================================================
// Field Readers
// =============================================================================

// fieldString reads the first present key, tolerating the casing variance
// the runtime has shipped across versions, and falling through to a
// nested "configuration" object carrying the same fields.
func fieldString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key]; ok {
			if s := scalarString(value); s != "" {
				return s
			}
		}
	}
	if nested, ok := record["configuration"].(map[string]any); ok {
		for _, key := range keys {
			if value, ok := nested[key]; ok {
				if s := scalarString(value); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		// Docker-style "Names": ["/web"].
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimPrefix(s, "/")
			}
		}
		return ""
	case float64:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return ""
	}
}

func fieldInt(record map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if value, ok := record[key]; ok {
			if n, ok := value.(float64); ok {
				return int(n), true
			}
		}
	}
	if nested, ok := record["configuration"].(map[string]any); ok {
		for _, key := range keys {
			if value, ok := nested[key]; ok {
				if n, ok := value.(float64); ok {
					return int(n), true
				}
			}
		}
	}
	return 0, false
}

func fieldLabels(record map[string]any) map[string]string {
	raw, ok := record["labels"].(map[string]any)
	if !ok {
		if nested, nok := record["configuration"].(map[string]any); nok {
			raw, ok = nested["labels"].(map[string]any)
		}
	}
	if !ok {
		return nil
	}
	labels := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, sok := v.(string); sok {
			labels[k] = s
		}
	}
	return labels
}

// =============================================================================
// Typed Records
// =============================================================================

// ContainerStatuses parses `list --format json` output into typed status
// records, dropping runtime-internal builder containers.
func ContainerStatuses(output string) []deployment.ContainerStatus {
	var statuses []deployment.ContainerStatus
	for _, record := range Records(output) {
		if fieldLabels(record)[builderRoleLabel] == "builder" {
			continue
		}
		name := fieldString(record, "name", "Name", "Names", "id", "ID")
		if name == "" {
			continue
		}
		status := deployment.ContainerStatus{
			Name:  name,
			State: normaliseState(fieldString(record, "state", "State", "status", "Status")),
		}
		if code, ok := fieldInt(record, "exitCode", "ExitCode"); ok {
			status.ExitCode = &code
		}
		if raw := fieldString(record, "startedAt", "StartedAt", "startedDate"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				status.StartedAt = &t
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// normaliseState maps the runtime's state vocabulary onto the four states
// the engine reasons about.
func normaliseState(state string) deployment.ContainerState {
	switch strings.ToLower(state) {
	case "running", "up":
		return deployment.StateRunning
	case "stopped", "exited", "dead":
		return deployment.StateStopped
	case "created":
		return deployment.StateCreated
	default:
		return deployment.StateUnknown
	}
}

// ImageRecord is one entry of `image list --format json`.
type ImageRecord struct {
	Reference  string `json:"reference"`
	Digest     string `json:"digest,omitempty"`
	InUseCount int    `json:"inUseCount"`
}

// Images parses `image list --format json` output.
func Images(output string) []ImageRecord {
	var images []ImageRecord
	for _, record := range Records(output) {
		ref := fieldString(record, "reference", "Reference", "name", "Name", "repository", "Repository")
		if ref == "" {
			continue
		}
		images = append(images, ImageRecord{
			Reference: ref,
			Digest:    fieldString(record, "digest", "Digest"),
		})
	}
	return images
}

// ContainerImages projects (containerName, imageReference) pairs out of
// `list --all --format json` output. Used for usage counting.
func ContainerImages(output string) map[string]string {
	uses := map[string]string{}
	for _, record := range Records(output) {
		if fieldLabels(record)[builderRoleLabel] == "builder" {
			continue
		}
		name := fieldString(record, "name", "Name", "Names", "id", "ID")
		image := fieldString(record, "image", "Image")
		if name == "" || image == "" {
			continue
		}
		uses[name] = image
	}
	return uses
}

// NetworkNames parses `network list --format json` output into names.
func NetworkNames(output string) []string {
	var names []string
	for _, record := range Records(output) {
		if name := fieldString(record, "name", "Name", "id", "ID"); name != "" {
			names = append(names, name)
		}
	}
	return names
}
