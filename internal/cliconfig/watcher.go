package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

const watchDebounce = 100 * time.Millisecond

// Watcher monitors the config file via fsnotify and signals on Changes
// whenever it is rewritten. Events are debounced because editors often
// emit several writes per save.
type Watcher struct {
	path string
	log  log.Logger

	changes chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
}

func NewWatcher(path string, logger log.Logger) *Watcher {
	return &Watcher{
		path:    path,
		log:     logger,
		changes: make(chan struct{}, 1),
	}
}

// Changes delivers one signal per (debounced) config file rewrite.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Run watches the directory containing the config file until ctx ends.
// Watching the directory rather than the file survives atomic
// rename-into-place saves.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.signalAfter(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", log.Err(err))
		}
	}
}

func (w *Watcher) signalAfter(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, func() {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	})
}
