package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
)

// =============================================================================
// Stack Listing
// =============================================================================

// GetStack loads one stack with its compose text and derived status.
func (e *Engine) GetStack(ctx context.Context, name string) (*Stack, error) {
	dir := stackDir(e.stacksDir, name)
	composeFileName, managed := findComposeFile(dir)
	if !managed && !e.locks.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, name)
	}

	stack := &Stack{
		Name:            name,
		Managed:         managed,
		ComposeFileName: composeFileName,
	}
	if managed {
		yamlText, envText, err := e.loadStackFiles(name)
		if err != nil {
			return nil, err
		}
		stack.ComposeYAML = yamlText
		stack.ComposeENV = envText
	}

	status, err := e.statusOf(ctx, name)
	if err != nil {
		return nil, err
	}
	stack.Status = status
	return stack, nil
}

// GetStackList returns every managed stack plus the stacks the runtime
// reports that have no compose file on disk. The result is cached until
// the next mutation or watcher event.
func (e *Engine) GetStackList(ctx context.Context) (map[string]*Stack, error) {
	e.mu.Lock()
	cached := e.listCache
	e.mu.Unlock()
	if cached != nil {
		return copyStackMap(cached), nil
	}

	stacks := map[string]*Stack{}

	// Stacks on disk: present even when the runtime knows nothing yet.
	entries, err := os.ReadDir(e.stacksDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scan stacks directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		composeFileName, ok := findComposeFile(stackDir(e.stacksDir, name))
		if !ok {
			continue
		}
		stacks[name] = &Stack{
			Name:            name,
			Managed:         true,
			ComposeFileName: composeFileName,
			Status:          deployment.StatusCreatedFile,
		}
	}

	// Overlay observed runtime status; unseen entries are externally
	// managed stacks.
	observed, err := e.adapter.AllStackStatus(ctx)
	if err != nil {
		return nil, err
	}
	for name, status := range observed {
		if name == deployment.ReservedStackName {
			continue
		}
		if stack, ok := stacks[name]; ok {
			stack.Status = status
			continue
		}
		stacks[name] = &Stack{
			Name:    name,
			Managed: false,
			Status:  status,
		}
	}

	e.mu.Lock()
	e.listCache = copyStackMap(stacks)
	e.mu.Unlock()
	return stacks, nil
}

func copyStackMap(in map[string]*Stack) map[string]*Stack {
	out := make(map[string]*Stack, len(in))
	for name, stack := range in {
		clone := *stack
		out[name] = &clone
	}
	return out
}
