package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// Records Tests
// =============================================================================

func TestRecords_JSONArray(t *testing.T) {
	got := Records(`[{"name":"a"},{"name":"b"}]`)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["name"])
}

func TestRecords_SingleObjectWrapped(t *testing.T) {
	got := Records(`{"name":"a"}`)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0]["name"])
}

func TestRecords_JSONL(t *testing.T) {
	got := Records("{\"name\":\"a\"}\n{\"name\":\"b\"}\n")
	require.Len(t, got, 2)
}

func TestRecords_JSONLDropsBadLines(t *testing.T) {
	got := Records("{\"name\":\"a\"}\nnot json\n{\"name\":\"b\"}\n")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["name"])
	assert.Equal(t, "b", got[1]["name"])
}

func TestRecords_Empty(t *testing.T) {
	assert.Nil(t, Records(""))
	assert.Nil(t, Records("  \n "))
}

// =============================================================================
// ContainerStatuses Tests
// =============================================================================

func TestContainerStatuses_LowercaseFields(t *testing.T) {
	out := `[{"name":"dockgeac_blog_web_1","state":"running","startedAt":"2025-06-01T10:00:00Z"}]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, "dockgeac_blog_web_1", got[0].Name)
	assert.Equal(t, deployment.StateRunning, got[0].State)
	require.NotNil(t, got[0].StartedAt)
}

func TestContainerStatuses_UppercaseFields(t *testing.T) {
	out := `[{"Name":"web","State":"stopped","ExitCode":137}]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, deployment.StateStopped, got[0].State)
	require.NotNil(t, got[0].ExitCode)
	assert.Equal(t, 137, *got[0].ExitCode)
}

func TestContainerStatuses_DockerStyleNames(t *testing.T) {
	out := `[{"Names":["/web"],"Status":"exited"}]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Name)
	assert.Equal(t, deployment.StateStopped, got[0].State)
}

func TestContainerStatuses_NestedConfiguration(t *testing.T) {
	out := `[{"configuration":{"id":"web"},"status":"running"}]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Name)
	assert.Equal(t, deployment.StateRunning, got[0].State)
}

func TestContainerStatuses_BuilderFiltered(t *testing.T) {
	out := `[
		{"name":"buildkit","state":"running","labels":{"com.apple.container.resource.role":"builder"}},
		{"name":"web","state":"running"}
	]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Name)
}

func TestContainerStatuses_UnknownState(t *testing.T) {
	out := `[{"name":"web","state":"hibernating"}]`
	got := ContainerStatuses(out)
	require.Len(t, got, 1)
	assert.Equal(t, deployment.StateUnknown, got[0].State)
}

// =============================================================================
// Image / Network Record Tests
// =============================================================================

func TestImages_Parse(t *testing.T) {
	out := `[{"reference":"docker.io/library/nginx:latest","digest":"sha256:abc"},{"reference":"redis:7"}]`
	got := Images(out)
	require.Len(t, got, 2)
	assert.Equal(t, "docker.io/library/nginx:latest", got[0].Reference)
	assert.Equal(t, "sha256:abc", got[0].Digest)
}

func TestContainerImages_Parse(t *testing.T) {
	out := `[{"name":"web","image":"nginx:latest"},{"name":"db","image":"postgres:16"}]`
	got := ContainerImages(out)
	assert.Equal(t, "nginx:latest", got["web"])
	assert.Equal(t, "postgres:16", got["db"])
}

func TestNetworkNames_Parse(t *testing.T) {
	out := "{\"name\":\"default\"}\n{\"name\":\"backend\"}\n"
	assert.Equal(t, []string{"default", "backend"}, NetworkNames(out))
}
