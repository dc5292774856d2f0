package adapter

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/core/deployment"
	"github.com/dockgeac/dockgeac/internal/shell/lockstore"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
)

// =============================================================================
// Fake Driver
// =============================================================================

// fakeDriver returns prerecorded results keyed by the joined argument
// list and records every invocation.
type fakeDriver struct {
	calls     [][]string
	responses map[string]runtime.Result
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{responses: map[string]runtime.Result{}}
}

func (d *fakeDriver) respond(args string, result runtime.Result) {
	d.responses[args] = result
}

func (d *fakeDriver) Run(_ context.Context, args ...string) runtime.Result {
	d.calls = append(d.calls, args)
	if result, ok := d.responses[strings.Join(args, " ")]; ok {
		return result
	}
	return runtime.Result{ExitCode: 0}
}

func (d *fakeDriver) Stream(_ context.Context, args ...string) (io.ReadCloser, error) {
	d.calls = append(d.calls, args)
	return io.NopCloser(strings.NewReader("log line\n")), nil
}

func (d *fakeDriver) called(args string) bool {
	for _, call := range d.calls {
		if strings.Join(call, " ") == args {
			return true
		}
	}
	return false
}

func newAdapter(t *testing.T) (*Apple, *fakeDriver, *lockstore.Store) {
	t.Helper()
	driver := newFakeDriver()
	locks := lockstore.NewStore(t.TempDir())
	return NewApple(driver, locks, nil), driver, locks
}

// =============================================================================
// Deploy Tests
// =============================================================================

func TestDeploy_HappyPath(t *testing.T) {
	a, driver, locks := newAdapter(t)

	plan := compose.Plan{
		StackName: "e2e-test",
		Services: map[string]compose.ServicePlan{
			"web": {
				Image: "nginx:latest",
				Ports: []string{"8080:80"},
			},
		},
	}

	require.NoError(t, a.Deploy(context.Background(), plan))

	assert.True(t, driver.called("image pull nginx:latest"))
	assert.True(t, driver.called("run -d --name dockgeac_e2e-test_web_1 -p 8080:80 nginx:latest"))

	record := locks.Read("e2e-test")
	require.NotNil(t, record)
	assert.Equal(t, "", record.Fingerprint)
	assert.Equal(t, "dockgeac_e2e-test_web_1", record.Services["web"].ContainerName)
	assert.Equal(t, "nginx:latest", record.Services["web"].Image)
	assert.NotEmpty(t, record.LastDeployed)
}

func TestDeploy_FlagOrderAndCommand(t *testing.T) {
	a, driver, _ := newAdapter(t)

	plan := compose.Plan{
		StackName: "blog",
		Services: map[string]compose.ServicePlan{
			"app": {
				Image:       "alpine:3",
				Command:     "sh -c 'sleep 30'",
				Environment: map[string]string{"B": "2", "A": "1"},
				Volumes:     []string{"data:/var/data"},
				Networks:    []string{"backend"},
				WorkingDir:  "/srv",
				User:        "1000",
			},
		},
	}

	require.NoError(t, a.Deploy(context.Background(), plan))

	want := "run -d --name dockgeac_blog_app_1 " +
		"-e A=1 -e B=2 -v data:/var/data --network backend -w /srv --user 1000 " +
		"alpine:3 sh -c sleep 30"
	assert.True(t, driver.called(want), "calls: %v", driver.calls)
}

func TestDeploy_RespectsDependencyOrder(t *testing.T) {
	a, driver, _ := newAdapter(t)

	plan := compose.Plan{
		StackName: "blog",
		Services: map[string]compose.ServicePlan{
			"web": {Image: "nginx", DependsOn: []string{"db"}},
			"db":  {Image: "postgres"},
		},
	}

	require.NoError(t, a.Deploy(context.Background(), plan))

	var created []string
	for _, call := range driver.calls {
		if call[0] == "run" {
			created = append(created, call[3])
		}
	}
	assert.Equal(t, []string{"dockgeac_blog_db_1", "dockgeac_blog_web_1"}, created)
}

func TestDeploy_FailureAbortsWithoutRollback(t *testing.T) {
	a, driver, locks := newAdapter(t)

	driver.respond("run -d --name dockgeac_blog_web_1 nginx", runtime.Result{
		ExitCode: 125,
		Stderr:   "port already bound",
	})

	plan := compose.Plan{
		StackName: "blog",
		Services: map[string]compose.ServicePlan{
			"web": {Image: "nginx", DependsOn: []string{"db"}},
			"db":  {Image: "postgres"},
		},
	}

	err := a.Deploy(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web")
	assert.Contains(t, err.Error(), "port already bound")

	// db was created and is not rolled back.
	assert.True(t, driver.called("run -d --name dockgeac_blog_db_1 postgres"))
	for _, call := range driver.calls {
		assert.NotEqual(t, "delete", call[0], "no rollback expected")
	}

	// The partial deploy is recorded so down() can clean up.
	record := locks.Read("blog")
	require.NotNil(t, record)
	assert.Contains(t, record.Services, "db")
	assert.NotContains(t, record.Services, "web")
}

// =============================================================================
// Pull Tests
// =============================================================================

func TestPullImage_LocalOnlyAbsent(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image list --format json", runtime.Result{Stdout: `[]`})

	err := a.PullImage(context.Background(), "app:local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Local image app:local not found")
	assert.False(t, driver.called("image pull app:local"), "local-only references must not be pulled")
}

func TestPullImage_LocalOnlyPresent(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image list --format json", runtime.Result{
		Stdout: `[{"reference":"app:local"}]`,
	})

	require.NoError(t, a.PullImage(context.Background(), "app:local"))
	assert.False(t, driver.called("image pull app:local"))
}

func TestPullImage_FallsBackToLocalCopy(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image pull nginx", runtime.Result{ExitCode: 1, Stderr: "network unreachable"})
	driver.respond("image list --format json", runtime.Result{
		Stdout: `[{"reference":"docker.io/library/nginx:latest"}]`,
	})

	// The qualified local copy satisfies the short reference.
	assert.NoError(t, a.PullImage(context.Background(), "nginx"))
}

func TestPullImage_FailsWhenAbsentEverywhere(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image pull ghost:1", runtime.Result{ExitCode: 1, Stderr: "manifest unknown"})
	driver.respond("image list --format json", runtime.Result{Stdout: `[]`})

	err := a.PullImage(context.Background(), "ghost:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest unknown")
}

// =============================================================================
// Start / Stop Target Tests
// =============================================================================

func writeLock(t *testing.T, locks *lockstore.Store, stack string, services map[string]string) {
	t.Helper()
	record := &lockstore.LockRecord{
		StackName:    stack,
		Services:     map[string]lockstore.ServiceLock{},
		LastDeployed: lockstore.Now(),
	}
	for svc, container := range services {
		record.Services[svc] = lockstore.ServiceLock{ContainerName: container, Image: "img"}
	}
	require.NoError(t, locks.Write(stack, record))
}

func TestStart_UsesLockRecordTargets(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{
		"web": "dockgeac_blog_web_1",
		"db":  "dockgeac_blog_db_1",
	})

	require.NoError(t, a.Start(context.Background(), "blog", ""))
	assert.True(t, driver.called("start dockgeac_blog_db_1"))
	assert.True(t, driver.called("start dockgeac_blog_web_1"))
}

func TestStart_NarrowedToService(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{
		"web": "dockgeac_blog_web_1",
		"db":  "dockgeac_blog_db_1",
	})

	require.NoError(t, a.Start(context.Background(), "blog", "web"))
	assert.True(t, driver.called("start dockgeac_blog_web_1"))
	assert.False(t, driver.called("start dockgeac_blog_db_1"))
}

func TestStart_NoLockFallsBackToStackName(t *testing.T) {
	a, driver, _ := newAdapter(t)
	require.NoError(t, a.Start(context.Background(), "legacy", ""))
	assert.True(t, driver.called("start legacy"))
}

func TestStart_NoLockWithServiceIsEmptySet(t *testing.T) {
	a, driver, _ := newAdapter(t)
	require.NoError(t, a.Start(context.Background(), "legacy", "web"))
	assert.Empty(t, driver.calls)
}

func TestStart_PropagatesNotFound(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{"web": "dockgeac_blog_web_1"})
	driver.respond("start dockgeac_blog_web_1", runtime.Result{
		ExitCode: 1,
		Stderr:   "Error: container dockgeac_blog_web_1 not found",
	})

	err := a.Start(context.Background(), "blog", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrContainerNotFound)
}

// =============================================================================
// Down Tests
// =============================================================================

func TestDown_RemovesExactlyOwnedContainers(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{
		"web": "dockgeac_blog_web_1",
		"db":  "dockgeac_blog_db_1",
	})

	require.NoError(t, a.Down(context.Background(), "blog", false))

	assert.True(t, driver.called("delete dockgeac_blog_db_1"))
	assert.True(t, driver.called("delete dockgeac_blog_web_1"))
	// A same-prefix container outside the record is never touched.
	assert.False(t, driver.called("delete dockgeac_blog_extra_1"))
	assert.Nil(t, locks.Read("blog"))
}

func TestDown_StopFailureTolerated(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{"web": "dockgeac_blog_web_1"})
	driver.respond("stop dockgeac_blog_web_1", runtime.Result{ExitCode: 1, Stderr: "already stopped"})

	require.NoError(t, a.Down(context.Background(), "blog", false))
	assert.Nil(t, locks.Read("blog"))
}

func TestDown_DeleteFailurePropagates(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{"web": "dockgeac_blog_web_1"})
	driver.respond("delete dockgeac_blog_web_1", runtime.Result{ExitCode: 1, Stderr: "busy"})

	err := a.Down(context.Background(), "blog", false)
	require.Error(t, err)
	// The record survives so a retry can still find the containers.
	assert.NotNil(t, locks.Read("blog"))
}

func TestDown_RemoveVolumes(t *testing.T) {
	a, driver, locks := newAdapter(t)
	record := &lockstore.LockRecord{
		StackName: "blog",
		Services: map[string]lockstore.ServiceLock{
			"web": {ContainerName: "dockgeac_blog_web_1", Image: "nginx"},
		},
		Volumes:      []string{"data"},
		LastDeployed: lockstore.Now(),
	}
	require.NoError(t, locks.Write("blog", record))

	require.NoError(t, a.Down(context.Background(), "blog", true))
	assert.True(t, driver.called("volume delete data"))
}

func TestDown_NoLockTargetsBareName(t *testing.T) {
	a, driver, _ := newAdapter(t)
	require.NoError(t, a.Down(context.Background(), "legacy", false))
	assert.True(t, driver.called("stop legacy"))
	assert.True(t, driver.called("delete legacy"))
}

// =============================================================================
// Status Tests
// =============================================================================

func TestServiceStatusList_WithLock(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{
		"web": "dockgeac_blog_web_1",
		"db":  "dockgeac_blog_db_1",
	})
	driver.respond("list --all --format json", runtime.Result{
		Stdout: `[{"name":"dockgeac_blog_web_1","state":"running"}]`,
	})

	got, err := a.ServiceStatusList(context.Background(), "blog")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, deployment.StateRunning, got["web"].State)
	// The vanished container gets a synthetic placeholder.
	assert.Equal(t, deployment.StateUnknown, got["db"].State)
	assert.Equal(t, "dockgeac_blog_db_1", got["db"].Name)
}

func TestServiceStatusList_WithoutLock(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("list --all --format json", runtime.Result{
		Stdout: `[
			{"name":"blog","state":"running"},
			{"name":"dockgeac_blog_web_1","state":"stopped"},
			{"name":"unrelated","state":"running"}
		]`,
	})

	got, err := a.ServiceStatusList(context.Background(), "blog")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got, "blog")
	assert.Contains(t, got, "dockgeac_blog_web_1")
}

func TestAllStackStatus_GroupsAndRollsUp(t *testing.T) {
	a, driver, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{
		"web": "dockgeac_blog_web_1",
		"db":  "dockgeac_blog_db_1",
	})
	writeLock(t, locks, "ghost", map[string]string{"web": "dockgeac_ghost_web_1"})

	driver.respond("list --all --format json", runtime.Result{
		Stdout: `[
			{"name":"dockgeac_blog_web_1","state":"running"},
			{"name":"dockgeac_blog_db_1","state":"stopped"},
			{"name":"dockgeac_wiki_app_1","state":"running"},
			{"name":"standalone","state":"stopped"},
			{"name":"dockge","state":"running"}
		]`,
	})

	got, err := a.AllStackStatus(context.Background())
	require.NoError(t, err)

	// Mixed running/stopped rolls up to running.
	assert.Equal(t, deployment.StatusRunning, got["blog"])
	// Prefix inference covers unlocked managed names.
	assert.Equal(t, deployment.StatusRunning, got["wiki"])
	// A plain container counts as a stack under its own name.
	assert.Equal(t, deployment.StatusExited, got["standalone"])
	// The reserved name is dropped.
	assert.NotContains(t, got, "dockge")
	// A locked stack with no observed containers reports unknown.
	assert.Equal(t, deployment.StatusUnknown, got["ghost"])
}

// =============================================================================
// Image Operation Tests
// =============================================================================

func TestImageList_CountsUsage(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image list --format json", runtime.Result{
		Stdout: `[{"reference":"docker.io/library/nginx:latest","digest":"sha256:abc"},{"reference":"redis:7"}]`,
	})
	driver.respond("list --all --format json", runtime.Result{
		Stdout: `[{"name":"web","image":"nginx:latest"},{"name":"cache","image":"redis:7"},{"name":"web2","image":"nginx:latest"}]`,
	})

	images, err := a.ImageList(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)

	byRef := map[string]ImageInfo{}
	for _, image := range images {
		byRef[image.Reference] = image
	}
	assert.Equal(t, 2, byRef["docker.io/library/nginx:latest"].InUseCount)
	assert.Equal(t, 1, byRef["redis:7"].InUseCount)
}

func TestDeleteImage_RefusedWhileInUse(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image list --format json", runtime.Result{
		Stdout: `[{"reference":"nginx:latest"}]`,
	})
	driver.respond("list --all --format json", runtime.Result{
		Stdout: `[{"name":"web","image":"nginx:latest"}]`,
	})

	err := a.DeleteImage(context.Background(), "nginx:latest")
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrImageInUse)
	assert.False(t, driver.called("image delete nginx:latest"))
}

func TestDeleteImage_Unused(t *testing.T) {
	a, driver, _ := newAdapter(t)
	driver.respond("image list --format json", runtime.Result{
		Stdout: `[{"reference":"nginx:latest"}]`,
	})
	driver.respond("list --all --format json", runtime.Result{Stdout: `[]`})

	require.NoError(t, a.DeleteImage(context.Background(), "nginx:latest"))
	assert.True(t, driver.called("image delete nginx:latest"))
}

// =============================================================================
// Exec Tests
// =============================================================================

func TestExec_Invocation(t *testing.T) {
	a, _, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{"web": "dockgeac_blog_web_1"})

	inv, err := a.Exec("blog", "web", "sh -c 'echo hi'")
	require.NoError(t, err)
	assert.Equal(t, "container", inv.Command)
	assert.Equal(t, []string{"exec", "-it", "dockgeac_blog_web_1", "sh", "-c", "echo hi"}, inv.Args)
	assert.NotEmpty(t, inv.SessionID)
}

func TestExec_DefaultShell(t *testing.T) {
	a, _, locks := newAdapter(t)
	writeLock(t, locks, "blog", map[string]string{"web": "dockgeac_blog_web_1"})

	inv, err := a.Exec("blog", "web", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"exec", "-it", "dockgeac_blog_web_1", "/bin/sh"}, inv.Args)
}
