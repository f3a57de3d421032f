// Package lifecycle tracks the long-running tasks of a process: start them
// under one context, cancel them together, and join them on shutdown with a
// bounded wait.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// ErrShutdownTimeout is returned when tasks do not finish within the
// shutdown grace period.
var ErrShutdownTimeout = errors.New("lifecycle: shutdown timeout")

// Group supervises a set of tasks. Tasks are expected to run until the
// group context is canceled; any other exit is logged and discarded, per
// the shutdown policy of treating unwind errors as noise.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    log.Logger
}

// NewGroup creates a group whose tasks are children of parent.
func NewGroup(parent context.Context, logger log.Logger) *Group {
	if logger == nil {
		logger = log.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel, log: logger}
}

// Go starts fn as a tracked task.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn(g.ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			g.log.Debug("task finished", log.Str("task", name))
		default:
			g.log.Warn("task exited", log.Str("task", name), log.Err(err))
		}
	}()
}

// Stop cancels all tasks and waits up to timeout for them to finish.
func (g *Group) Stop(timeout time.Duration) error {
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		g.log.Warn("shutdown timeout, abandoning tasks", log.Dur("timeout", timeout))
		return ErrShutdownTimeout
	}
}
