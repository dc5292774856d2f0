// Package envsubst applies .env variable substitution to compose text.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// Substitution happens on the raw YAML text before compilation, matching
// compose semantics: the compiler only ever sees resolved values.
package envsubst

import (
	"fmt"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/compose-spec/compose-go/v2/template"
)

// =============================================================================
// Env Parsing
// =============================================================================

// ParseEnv parses dotenv text into a variable map.
// Standard dotenv semantics: comments, quoting, export prefixes. Env text
// that is a single non-comment line with no '=' is a parse error -
// surfaced so save() can reject it.
func ParseEnv(envText string) (map[string]string, error) {
	trimmed := strings.TrimSpace(envText)
	if trimmed == "" {
		return map[string]string{}, nil
	}
	if !strings.Contains(trimmed, "\n") && !strings.Contains(trimmed, "=") && !strings.HasPrefix(trimmed, "#") {
		return nil, fmt.Errorf("invalid env file: line %q has no '='", trimmed)
	}
	env, err := dotenv.Parse(strings.NewReader(envText))
	if err != nil {
		return nil, fmt.Errorf("invalid env file: %w", err)
	}
	return env, nil
}

// =============================================================================
// Substitution
// =============================================================================

// Substitute expands ${VAR} and $VAR occurrences in yamlText from env.
// Undefined variables expand to the empty string.
func Substitute(yamlText string, env map[string]string) (string, error) {
	resolved, err := template.Substitute(yamlText, func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	})
	if err != nil {
		return "", fmt.Errorf("variable substitution failed: %w", err)
	}
	return resolved, nil
}

// Apply parses envText and substitutes its variables into yamlText.
func Apply(yamlText, envText string) (string, error) {
	env, err := ParseEnv(envText)
	if err != nil {
		return "", err
	}
	return Substitute(yamlText, env)
}
