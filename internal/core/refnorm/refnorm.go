// Package refnorm canonicalises image references for equality testing.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// The container runtime reports images under fully qualified names
// (docker.io/library/nginx:latest) while users write short forms (nginx).
// Candidates bridges the two by expanding a reference into every name the
// runtime might report it under.
package refnorm

import (
	"strings"

	"github.com/distribution/reference"
)

// =============================================================================
// Candidate Expansion
// =============================================================================

// Candidates produces the ordered candidate set for an image reference.
// Two references denote the same image iff their candidate sets intersect.
//
// Example:
//
//	Candidates("nginx") // ["nginx", "docker.io/library/nginx"]
//	Candidates("nginx@sha256:abc") // includes "nginx"
func Candidates(ref string) []string {
	canonical := strings.ToLower(strings.TrimSpace(ref))
	if canonical == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	add(canonical)

	tail := stripDigest(canonical)
	add(tail)

	switch {
	case strings.HasPrefix(tail, "docker.io/library/"):
		add(strings.TrimPrefix(tail, "docker.io/library/"))
	case strings.HasPrefix(tail, "docker.io/"):
		add(strings.TrimPrefix(tail, "docker.io/"))
	case !strings.Contains(tail, "/"):
		add("docker.io/library/" + tail)
	default:
		first := tail[:strings.Index(tail, "/")]
		if !strings.ContainsAny(first, ".:") && first != "localhost" {
			add("docker.io/" + tail)
		}
	}

	return out
}

// Matches reports whether two references denote the same image, i.e.
// their candidate sets intersect.
func Matches(a, b string) bool {
	candidates := map[string]bool{}
	for _, c := range Candidates(a) {
		candidates[c] = true
	}
	for _, c := range Candidates(b) {
		if candidates[c] {
			return true
		}
	}
	return false
}

// =============================================================================
// Local-Only References
// =============================================================================

// IsLocalOnly reports whether a reference must never be pulled from a
// remote registry: locally built images tagged :local and anything under
// the localhost/ registry.
func IsLocalOnly(ref string) bool {
	canonical := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasSuffix(canonical, ":local") || strings.HasPrefix(canonical, "localhost/")
}

// =============================================================================
// Helpers
// =============================================================================

// stripDigest removes an @<digest> suffix. Well-formed references go
// through the reference parser; anything it rejects falls back to a plain
// textual split so malformed input still canonicalises deterministically.
func stripDigest(ref string) string {
	if parsed, err := reference.Parse(ref); err == nil {
		if canonical, ok := parsed.(reference.Canonical); ok {
			if tagged, ok := canonical.(reference.Tagged); ok {
				return canonical.Name() + ":" + tagged.Tag()
			}
			return canonical.Name()
		}
		return ref
	}
	if at := strings.Index(ref, "@"); at >= 0 {
		return ref[:at]
	}
	return ref
}
