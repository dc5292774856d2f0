// Package observer polls the container runtime and emits diff events.
// This is part of the Imperative Shell.
//
// The observer is a read-only side channel: it never mutates engine
// state. Subscribers (the transport layer) fan its events out to clients.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dockgeac/dockgeac/internal/core/deployment"
	"github.com/dockgeac/dockgeac/internal/shell/runtime"
)

// =============================================================================
// Events
// =============================================================================

// EventType identifies what an event reports.
type EventType string

const (
	ContainerCreated EventType = "containerCreated"
	ContainerRemoved EventType = "containerRemoved"
	StateChanged     EventType = "stateChanged"
	StatusUpdate     EventType = "statusUpdate"
	PollError        EventType = "pollError"
)

// Event is one observer notification. Fields are populated per type:
// Status for containerCreated, Name for containerRemoved, Name/OldState/
// NewState for stateChanged, Snapshot for statusUpdate, Err for
// pollError.
type Event struct {
	Type     EventType
	Status   *deployment.ContainerStatus
	Name     string
	OldState deployment.ContainerState
	NewState deployment.ContainerState
	Snapshot []deployment.ContainerStatus
	Err      error
}

// Handler processes one event. Handlers run synchronously on the poll
// goroutine in subscription order; a panicking handler is recovered and
// logged without affecting the others.
type Handler func(Event)

// =============================================================================
// Observer
// =============================================================================

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Observer periodically lists all containers and diffs the snapshot
// against the previous one, keyed by container name.
type Observer struct {
	driver   runtime.Driver
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	handlers []Handler
	previous map[string]deployment.ContainerStatus
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an observer.
func New(driver runtime.Driver, interval time.Duration, logger *slog.Logger) *Observer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		driver:   driver,
		interval: interval,
		logger:   logger.With("component", "observer"),
	}
}

// Subscribe registers a handler for every event.
func (o *Observer) Subscribe(handler Handler) {
	o.mu.Lock()
	o.handlers = append(o.handlers, handler)
	o.mu.Unlock()
}

// Start begins polling. One poll runs immediately; Start while running
// is a no-op.
func (o *Observer) Start() {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(ctx)
	o.logger.Info("observer started", "interval", o.interval)
}

// Stop cancels the scheduled tick and waits for the poll goroutine.
// Stop while stopped is a no-op.
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	o.wg.Wait()
	o.logger.Info("observer stopped")
}

// run is the poll loop. Polls execute serially on this goroutine, so
// overlapping ticks are suppressed by construction.
func (o *Observer) run(ctx context.Context) {
	defer o.wg.Done()
	o.poll(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// =============================================================================
// Polling
// =============================================================================

func (o *Observer) poll(ctx context.Context) {
	result := o.driver.Run(ctx, "list", "--all", "--format", "json")
	if !result.Ok() {
		err := runtime.NewCommandError("observe", []string{"list", "--all", "--format", "json"}, result, nil)
		o.publish(Event{Type: PollError, Err: err})
		return
	}

	snapshot := runtime.ContainerStatuses(result.Stdout)
	current := make(map[string]deployment.ContainerStatus, len(snapshot))
	for _, status := range snapshot {
		current[status.Name] = status
	}

	o.mu.Lock()
	previous := o.previous
	o.previous = current
	o.mu.Unlock()

	for name, status := range current {
		old, existed := previous[name]
		if !existed {
			if previous != nil {
				statusCopy := status
				o.publish(Event{Type: ContainerCreated, Status: &statusCopy})
			}
			continue
		}
		if old.State != status.State {
			o.publish(Event{
				Type:     StateChanged,
				Name:     name,
				OldState: old.State,
				NewState: status.State,
			})
		}
	}
	for name := range previous {
		if _, stillThere := current[name]; !stillThere {
			o.publish(Event{Type: ContainerRemoved, Name: name})
		}
	}

	o.publish(Event{Type: StatusUpdate, Snapshot: snapshot})
}

func (o *Observer) publish(event Event) {
	o.mu.Lock()
	handlers := make([]Handler, len(o.handlers))
	copy(handlers, o.handlers)
	o.mu.Unlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("event handler panicked", "event", event.Type, "panic", r)
				}
			}()
			handler(event)
		}()
	}
}
