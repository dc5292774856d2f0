package envsubst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ParseEnv Tests
// =============================================================================

func TestParseEnv_Simple(t *testing.T) {
	env, err := ParseEnv("PORT=8080\nNAME=web\n")
	require.NoError(t, err)
	assert.Equal(t, "8080", env["PORT"])
	assert.Equal(t, "web", env["NAME"])
}

func TestParseEnv_Empty(t *testing.T) {
	env, err := ParseEnv("")
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestParseEnv_CommentsAndQuotes(t *testing.T) {
	env, err := ParseEnv("# comment\nQUOTED=\"hello world\"\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world", env["QUOTED"])
}

// =============================================================================
// Substitute Tests
// =============================================================================

func TestSubstitute_BracedAndBare(t *testing.T) {
	yaml := "services:\n  web:\n    image: nginx:${TAG}\n    user: $USER_ID\n"
	out, err := Substitute(yaml, map[string]string{"TAG": "1.25", "USER_ID": "1000"})
	require.NoError(t, err)
	assert.Contains(t, out, "nginx:1.25")
	assert.Contains(t, out, "user: 1000")
}

func TestSubstitute_UndefinedExpandsEmpty(t *testing.T) {
	out, err := Substitute("image: nginx:${MISSING}", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "image: nginx:", out)
}

func TestSubstitute_NoVariables(t *testing.T) {
	yaml := "services:\n  web:\n    image: nginx\n"
	out, err := Substitute(yaml, map[string]string{"UNUSED": "x"})
	require.NoError(t, err)
	assert.Equal(t, yaml, out)
}

// =============================================================================
// Apply Tests
// =============================================================================

func TestApply_EndToEnd(t *testing.T) {
	yaml := "services:\n  web:\n    image: nginx\n    ports:\n      - \"${PORT}:80\"\n"
	out, err := Apply(yaml, "PORT=8080\n")
	require.NoError(t, err)
	assert.Contains(t, out, "\"8080:80\"")
}

func TestApply_InvalidEnv(t *testing.T) {
	_, err := Apply("image: nginx", "NOT A VALID LINE")
	assert.Error(t, err)
}
