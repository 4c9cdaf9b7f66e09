package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/certsend/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 4

var (
	// ErrClosed is returned by Go after Wait has been called.
	ErrClosed = errors.New("goroutine manager is closed")
	// ErrPanic wraps a value recovered from a panicking task.
	ErrPanic = errors.New("panic occurred in goroutine")
)

// Manager runs functions in goroutines with a bounded concurrency limit.
//
// Go blocks while the limit is reached, so every accepted task eventually runs.
// It collects errors returned by tasks and can be waited on using Wait.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	wg      sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = min(runtime.NumCPU(), DefaultMaxGoroutine)
	}

	return &Manager{
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Limit returns the maximum number of concurrently running tasks.
func (g *Manager) Limit() int {
	return cap(g.sema)
}

// Go schedules f once a slot is free.
//
// It returns the context error when ctx ends before a slot is acquired and
// ErrClosed after Wait; in both cases f is not run. A panic inside f is
// recovered, logged with its stack and collected as ErrPanic.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) error {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		return ErrClosed
	}

	select {
	case g.sema <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.wg.Go(func() {
		defer func() {
			<-g.sema

			if rvr := recover(); rvr != nil {
				stack := debug.Stack()
				if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
					slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
				} else {
					slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
				}
				g.collect(fmt.Errorf("%w: %v", ErrPanic, rvr))
			}
		}()

		if err := f(ctx); err != nil {
			g.collect(err)
		}
	})

	return nil
}

func (g *Manager) collect(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

// Wait blocks until all scheduled goroutines finish and returns any collected errors.
// The manager does not accept new tasks afterwards.
func (g *Manager) Wait() error {
	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}
