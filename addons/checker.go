package addons

import (
	"context"
	"sync"
	"time"

	"browserd/util/taskgroup"

	"go.uber.org/zap"
)

// UnsupportedChecker periodically re-examines unsupported add-ons while its
// subscription is registered. It is an explicit two-state machine:
// Register and Unregister are idempotent and mutually exclusive, so the
// subscription can never silently survive a state change.
type UnsupportedChecker struct {
	interval time.Duration
	check    func(ctx context.Context)
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	registered bool
	stop       chan struct{}
}

// NewUnsupportedChecker creates the checker; check runs once per interval
// while registered.
func NewUnsupportedChecker(interval time.Duration, check func(ctx context.Context), logger *zap.SugaredLogger) *UnsupportedChecker {
	return &UnsupportedChecker{
		interval: interval,
		check:    check,
		logger:   logger,
	}
}

// Register starts the periodic check on g. A no-op when already registered.
func (c *UnsupportedChecker) Register(g *taskgroup.Group) {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return
	}
	c.registered = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.logger.Info("Unsupported add-on check registered")

	g.Go("unsupported-addon-check", func(ctx context.Context) error {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-stop:
				return nil
			case <-ticker.C:
				c.check(ctx)
			}
		}
	})
}

// Unregister stops the periodic check. A no-op when not registered.
func (c *UnsupportedChecker) Unregister() {
	c.mu.Lock()
	if !c.registered {
		c.mu.Unlock()
		return
	}
	c.registered = false
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	close(stop)
	c.logger.Info("Unsupported add-on check unregistered")
}

// Registered reports the current state.
func (c *UnsupportedChecker) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}
