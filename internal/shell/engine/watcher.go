package engine

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// Stacks Directory Watcher
// =============================================================================

// Watcher invalidates the engine's stack list cache when the stacks
// directory changes on disk, so externally edited compose files show up
// without waiting for a mutation.
type Watcher struct {
	engine  *Engine
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// NewWatcher starts watching the engine's stacks directory.
func NewWatcher(e *Engine, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(e.stacksDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		engine:  e,
		watcher: fw,
		logger:  logger.With("component", "stacks_watcher"),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				w.logger.Debug("stacks directory changed", "path", event.Name, "op", event.Op.String())
				w.engine.InvalidateCache()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
