// Package closer provides a LIFO queue of cleanup tasks drained at the end
// of main:
//
//	c := closer.New()
//	c.Add(func(ctx context.Context) error { return srv.Shutdown(ctx) })
//	...
//	defer c.Close(shutdownCtx)
//
// Tasks run once, in reverse order of registration. Panics are recovered.
// Close is idempotent and returns an aggregated error via errors.Join.
package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is a cleanup function. It should honor ctx and return an error if it
// cannot finish (or ctx is canceled).
type Task func(ctx context.Context) error

type Closer struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

func New() *Closer {
	return &Closer{tasks: make([]Task, 0, 8)}
}

// Add registers a task to be run on Close, in LIFO order. Safe to call from
// any goroutine. If t is nil or Close has already started, Add does nothing.
func (c *Closer) Add(t Task) {
	if t == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.tasks = append(c.tasks, t)
}

// Close drains all registered tasks in LIFO order. It is safe to call
// multiple times; after the first run, subsequent calls are no-ops.
//
// If ctx is canceled or times out mid-drain, Close stops early and returns an
// error that includes both the context error and any task errors so far.
func (c *Closer) Close(ctx context.Context) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true

	tasks := c.tasks
	c.tasks = nil

	c.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("close canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		func(t Task) {
			defer func() {
				r := recover()
				if r != nil {
					errs = append(errs, fmt.Errorf("panic in close task: %v", r))
				}
			}()

			err := t(ctx)
			if err != nil {
				errs = append(errs, err)
			}
		}(tasks[i])
	}

	return errors.Join(errs...)
}
