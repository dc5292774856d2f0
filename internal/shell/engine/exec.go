package engine

import (
	"fmt"

	"github.com/dockgeac/dockgeac/internal/shell/adapter"
)

// =============================================================================
// Exec Session Registry
// =============================================================================

// Exec builds an interactive exec invocation and registers its handle so
// the terminal layer can look it up when attaching.
func (e *Engine) Exec(stackName, serviceName, command string) (adapter.ExecInvocation, error) {
	invocation, err := e.adapter.Exec(stackName, serviceName, command)
	if err != nil {
		return adapter.ExecInvocation{}, err
	}

	e.mu.Lock()
	if e.execSessions == nil {
		e.execSessions = map[string]adapter.ExecInvocation{}
	}
	e.execSessions[invocation.SessionID] = invocation
	e.mu.Unlock()

	return invocation, nil
}

// ExecSession returns a previously registered invocation by handle.
func (e *Engine) ExecSession(sessionID string) (adapter.ExecInvocation, error) {
	e.mu.Lock()
	invocation, ok := e.execSessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return adapter.ExecInvocation{}, fmt.Errorf("exec session %s not found", sessionID)
	}
	return invocation, nil
}

// ReleaseExecSession drops a handle once the terminal layer is done.
func (e *Engine) ReleaseExecSession(sessionID string) {
	e.mu.Lock()
	delete(e.execSessions, sessionID)
	e.mu.Unlock()
}
