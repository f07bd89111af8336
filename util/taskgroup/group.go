// Package taskgroup provides the application-scoped concurrency scope.
// Every background task the runtime spawns is registered with one Group so a
// single cancellation call reaches all of them.
package taskgroup

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// Recover recovers from panics in spawned tasks and logs them.
// If logger is nil, falls back to stderr to ensure the panic is recorded.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, StackTraceBufferSize)
		n := runtime.Stack(buf, false)

		if logger != nil {
			logger.Errorw("Task panic recovered",
				"task", name,
				"panic", r,
				"stack", string(buf[:n]))
		} else {
			fmt.Fprintf(os.Stderr, "PANIC in task %s (no logger): %v\n%s\n",
				name, r, string(buf[:n]))
		}
	}
}

// Group is a structured concurrency scope. Tasks spawned through Go share one
// context; CancelAll cancels every in-flight task through that context. The
// cancellation is coarse and irreversible - a cancelled Group accepts no new
// work and there is no per-task cancellation.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger

	mu        sync.Mutex
	cancelled bool
	panicFn   func(name string, value any)
}

// NewGroup creates a scope whose tasks are children of parent.
func NewGroup(parent context.Context, logger *zap.SugaredLogger) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Context returns the scope context. It is cancelled by CancelAll.
func (g *Group) Context() context.Context {
	return g.ctx
}

// OnPanic registers fn to run after a task panic has been recovered and
// logged. Crash reporting hooks in here. At most one handler; a later call
// replaces the previous one.
func (g *Group) OnPanic(fn func(name string, value any)) {
	g.mu.Lock()
	g.panicFn = fn
	g.mu.Unlock()
}

// recoverTask is deferred by every spawned task. It logs the panic the same
// way Recover does, then invokes the OnPanic handler.
func (g *Group) recoverTask(name string) {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)

	if g.logger != nil {
		g.logger.Errorw("Task panic recovered",
			"task", name,
			"panic", r,
			"stack", string(buf[:n]))
	} else {
		fmt.Fprintf(os.Stderr, "PANIC in task %s (no logger): %v\n%s\n",
			name, r, string(buf[:n]))
	}

	g.mu.Lock()
	fn := g.panicFn
	g.mu.Unlock()
	if fn != nil {
		fn(name, r)
	}
}

// Go spawns fn on the scope. The task receives the scope context and must
// return promptly once it is cancelled. Errors are logged, not propagated:
// background setup failures are isolated per task and never fail the
// foreground startup path.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.mu.Lock()
	if g.cancelled {
		g.mu.Unlock()
		if g.logger != nil {
			g.logger.Debugw("Task rejected, scope already cancelled", "task", name)
		}
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer g.recoverTask(name)
		if err := fn(g.ctx); err != nil && g.ctx.Err() == nil {
			if g.logger != nil {
				g.logger.Errorw("Task failed", "task", name, "error", err)
			}
		}
	}()
}

// CancelAll cancels every task spawned on the scope. Safe to call repeatedly.
func (g *Group) CancelAll() {
	g.mu.Lock()
	g.cancelled = true
	g.mu.Unlock()
	g.cancel()
}

// Cancelled reports whether CancelAll has been invoked.
func (g *Group) Cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// Wait blocks until all spawned tasks have returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
