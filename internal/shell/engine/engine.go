package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dockgeac/dockgeac/internal/core/compose"
	"github.com/dockgeac/dockgeac/internal/core/deployment"
	"github.com/dockgeac/dockgeac/internal/core/envsubst"
	"github.com/dockgeac/dockgeac/internal/shell/adapter"
	"github.com/dockgeac/dockgeac/internal/shell/lockstore"
)

// =============================================================================
// Engine
// =============================================================================

// Settings is the read-only view of the preference store the engine
// consumes. None of these change engine behaviour; they flavour
// presentation.
type Settings interface {
	PrimaryHostname() string
}

// stackNamePattern is the contract for stack names: they become directory
// names and container name segments.
var stackNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Engine coordinates the stack lifecycle over the adapter, the lock
// store and the stacks directory.
//
// Stack-mutating operations hold a per-stack mutex: the lock store's
// atomic rename prevents torn files but not lost updates, so concurrent
// deploys of the same stack are serialised here.
type Engine struct {
	stacksDir string
	adapter   adapter.RuntimeAdapter
	locks     *lockstore.Store
	settings  Settings
	logger    *slog.Logger

	mu           sync.Mutex
	stackLocks   map[string]*sync.Mutex
	listCache    map[string]*Stack
	execSessions map[string]adapter.ExecInvocation
}

// New creates an engine.
func New(stacksDir string, rt adapter.RuntimeAdapter, locks *lockstore.Store, settings Settings, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		stacksDir:  stacksDir,
		adapter:    rt,
		locks:      locks,
		settings:   settings,
		logger:     logger.With("component", "engine"),
		stackLocks: map[string]*sync.Mutex{},
	}
}

// lockStack returns the mutex serialising operations on one stack.
func (e *Engine) lockStack(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.stackLocks[name]
	if !ok {
		m = &sync.Mutex{}
		e.stackLocks[name] = m
	}
	return m
}

// InvalidateCache drops the cached stack list. Called by every mutation
// path and by the stacks-directory watcher.
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	e.listCache = nil
	e.mu.Unlock()
}

// PrimaryHostname returns the configured presentation hostname, if any.
func (e *Engine) PrimaryHostname() string {
	if e.settings == nil {
		return ""
	}
	return e.settings.PrimaryHostname()
}

// =============================================================================
// Save
// =============================================================================

// Save validates and writes a stack's compose document and env file.
// With isAdd the stack directory must not exist yet; without it, it must.
func (e *Engine) Save(ctx context.Context, name, yamlText, envText string, isAdd bool) error {
	if !stackNamePattern.MatchString(name) {
		return NewValidationError("name", ErrInvalidStackName.Error(), ErrInvalidStackName)
	}

	var doc any
	if err := yaml.Unmarshal([]byte(yamlText), &doc); err != nil {
		return NewValidationError("compose", fmt.Sprintf("invalid YAML: %v", err), ErrInvalidCompose)
	}

	if err := validateEnvText(envText); err != nil {
		return err
	}

	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	dir := stackDir(e.stacksDir, name)
	if isAdd {
		if _, err := os.Stat(dir); err == nil {
			return NewValidationError("name", fmt.Sprintf("stack %s already exists", name), ErrStackExists)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create stack directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("%w: %s", ErrStackNotFound, name)
		}
	}

	composeFileName, ok := findComposeFile(dir)
	if !ok {
		composeFileName = AcceptedComposeFileNames[0]
	}
	if err := os.WriteFile(filepath.Join(dir, composeFileName), []byte(yamlText), 0o644); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}

	envPath := filepath.Join(dir, ".env")
	_, envExists := fileExists(envPath)
	if strings.TrimSpace(envText) != "" || envExists {
		if err := os.WriteFile(envPath, []byte(envText), 0o644); err != nil {
			return fmt.Errorf("write env file: %w", err)
		}
	}

	e.InvalidateCache()
	return nil
}

// validateEnvText rejects env input the substituter cannot parse, in
// particular a single line carrying no '='.
func validateEnvText(envText string) error {
	trimmed := strings.TrimSpace(envText)
	if trimmed == "" {
		return nil
	}
	if !strings.Contains(trimmed, "\n") && !strings.Contains(trimmed, "=") && !strings.HasPrefix(trimmed, "#") {
		return NewValidationError("env", fmt.Sprintf("invalid env line: %q", trimmed), ErrInvalidEnv)
	}
	if _, err := envsubst.ParseEnv(envText); err != nil {
		return NewValidationError("env", err.Error(), ErrInvalidEnv)
	}
	return nil
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy compiles the stack's compose document and realises it.
// On success the lock record's fingerprint is rewritten to the sha256 of
// the raw compose text so drift detection works across restarts.
func (e *Engine) Deploy(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()
	return e.deployLocked(ctx, name)
}

func (e *Engine) deployLocked(ctx context.Context, name string) error {
	yamlText, envText, err := e.loadStackFiles(name)
	if err != nil {
		return err
	}

	plan, err := e.compile(name, yamlText, envText)
	if err != nil {
		return err
	}

	if err := e.adapter.Deploy(ctx, plan); err != nil {
		return err
	}

	if record := e.locks.Read(name); record != nil {
		record.Fingerprint = lockstore.Fingerprint(yamlText)
		if err := e.locks.Write(name, record); err != nil {
			return err
		}
	}

	e.InvalidateCache()
	e.logger.Info("stack deployed", "stack", name)
	return nil
}

// compile substitutes env variables and compiles, raising a CompileError
// when the plan must not be deployed.
func (e *Engine) compile(name, yamlText, envText string) (compose.Plan, error) {
	resolved, err := envsubst.Apply(yamlText, envText)
	if err != nil {
		return compose.Plan{}, NewValidationError("env", err.Error(), ErrInvalidEnv)
	}

	result := compose.Compile(resolved, name)
	for _, warning := range result.Warnings {
		e.logger.Warn("compose warning", "stack", name, "path", warning.Path, "message", warning.Message)
	}
	if result.HasErrors() {
		return compose.Plan{}, compose.NewCompileError(name, result.Errors)
	}
	return result.Plan, nil
}

// =============================================================================
// Start / Stop / Restart / Down
// =============================================================================

// Start starts a stack. A file-managed stack that was never deployed is
// deployed instead; a runtime "not found" on a file-managed stack also
// falls through to deploy, covering lock records that outlived their
// containers.
func (e *Engine) Start(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	managed := e.isManaged(name)
	if managed && !e.locks.Exists(name) {
		return e.deployLocked(ctx, name)
	}

	err := e.adapter.Start(ctx, name, "")
	if err != nil && managed && containsNotFound(err) {
		e.logger.Info("start fell through to deploy", "stack", name, "reason", err)
		return e.deployLocked(ctx, name)
	}
	if err == nil {
		e.InvalidateCache()
	}
	return err
}

// Stop stops a stack's containers.
func (e *Engine) Stop(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	if err := e.adapter.Stop(ctx, name, ""); err != nil {
		return err
	}
	e.InvalidateCache()
	return nil
}

// Restart restarts a stack's containers.
func (e *Engine) Restart(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	if err := e.adapter.Restart(ctx, name, ""); err != nil {
		return err
	}
	e.InvalidateCache()
	return nil
}

// Down stops and removes a stack's containers.
func (e *Engine) Down(ctx context.Context, name string, removeVolumes bool) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	if err := e.adapter.Down(ctx, name, removeVolumes); err != nil {
		return err
	}
	e.InvalidateCache()
	return nil
}

// =============================================================================
// Update
// =============================================================================

// Update pulls fresh images and, when the stack is running, recreates it
// with a down/deploy cycle.
func (e *Engine) Update(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	yamlText, envText, err := e.loadStackFiles(name)
	if err != nil {
		return err
	}

	resolved, err := envsubst.Apply(yamlText, envText)
	if err != nil {
		return NewValidationError("env", err.Error(), ErrInvalidEnv)
	}
	result := compose.Compile(resolved, name)

	// Pre-pull every declared image so the recreate window stays short.
	var group errgroup.Group
	for _, svc := range result.Plan.Services {
		image := svc.Image
		if image == "" {
			continue
		}
		group.Go(func() error {
			return e.adapter.PullImage(ctx, image)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	status, err := e.statusOf(ctx, name)
	if err != nil {
		return err
	}
	if status != deployment.StatusRunning {
		e.logger.Info("stack not running, images refreshed only", "stack", name, "status", status)
		return nil
	}

	plan, err := e.compile(name, yamlText, envText)
	if err != nil {
		return err
	}

	if err := e.adapter.Down(ctx, name, false); err != nil {
		return err
	}
	if err := e.adapter.Deploy(ctx, plan); err != nil {
		return err
	}
	if record := e.locks.Read(name); record != nil {
		record.Fingerprint = lockstore.Fingerprint(yamlText)
		if err := e.locks.Write(name, record); err != nil {
			return err
		}
	}

	e.InvalidateCache()
	e.logger.Info("stack updated", "stack", name)
	return nil
}

// =============================================================================
// Delete
// =============================================================================

// Delete tears the stack down and removes its directory. Down failures
// are logged, not fatal: the user asked for the stack to go away.
func (e *Engine) Delete(ctx context.Context, name string) error {
	lock := e.lockStack(name)
	lock.Lock()
	defer lock.Unlock()

	if err := e.adapter.Down(ctx, name, false); err != nil {
		e.logger.Warn("down failed during delete", "stack", name, "error", err)
	}
	if err := e.locks.Delete(name); err != nil {
		e.logger.Warn("lock cleanup failed during delete", "stack", name, "error", err)
	}

	dir := stackDir(e.stacksDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove stack directory: %w", err)
	}

	e.InvalidateCache()
	e.logger.Info("stack deleted", "stack", name)
	return nil
}

// =============================================================================
// Status / Queries
// =============================================================================

// ServiceStatusList reports per-service container status for one stack.
func (e *Engine) ServiceStatusList(ctx context.Context, name string) (map[string]deployment.ContainerStatus, error) {
	return e.adapter.ServiceStatusList(ctx, name)
}

// statusOf derives one stack's current status from runtime observation.
func (e *Engine) statusOf(ctx context.Context, name string) (deployment.StackStatus, error) {
	statuses, err := e.adapter.ServiceStatusList(ctx, name)
	if err != nil {
		return deployment.StatusUnknown, err
	}
	if len(statuses) == 0 {
		if e.isManaged(name) && !e.locks.Exists(name) {
			return deployment.StatusCreatedFile, nil
		}
		return deployment.StatusUnknown, nil
	}
	containers := make([]deployment.ContainerStatus, 0, len(statuses))
	for _, status := range statuses {
		containers = append(containers, status)
	}
	return deployment.Rollup(containers), nil
}

// =============================================================================
// Helpers
// =============================================================================

// isManaged reports whether the stack has a compose file on disk.
func (e *Engine) isManaged(name string) bool {
	_, ok := findComposeFile(stackDir(e.stacksDir, name))
	return ok
}

// loadStackFiles reads the stack's compose document and optional .env.
func (e *Engine) loadStackFiles(name string) (yamlText, envText string, err error) {
	dir := stackDir(e.stacksDir, name)
	composeFileName, ok := findComposeFile(dir)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrStackNotFound, name)
	}

	yamlBytes, err := os.ReadFile(filepath.Join(dir, composeFileName))
	if err != nil {
		return "", "", fmt.Errorf("read compose file: %w", err)
	}

	envBytes, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", "", fmt.Errorf("read env file: %w", err)
	}

	return string(yamlBytes), string(envBytes), nil
}

func fileExists(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	return info, err == nil
}

// containsNotFound matches the runtime's "not found" phrasing,
// case-insensitively.
func containsNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
