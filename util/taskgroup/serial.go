package taskgroup

import (
	"context"

	"go.uber.org/zap"
)

// Serial is a single-goroutine run queue. Work submitted through Submit
// executes one item at a time in submission order, which gives store-ordered
// operations (session restore against the state store) an execution context
// that cannot race other submitters.
type Serial struct {
	queue  chan func(ctx context.Context)
	done   <-chan struct{}
	logger *zap.SugaredLogger
}

// NewSerial creates the run queue and starts its worker on the given scope.
// The worker drains until the scope is cancelled.
func NewSerial(g *Group, logger *zap.SugaredLogger) *Serial {
	s := &Serial{
		queue:  make(chan func(ctx context.Context), 64),
		done:   g.Context().Done(),
		logger: logger,
	}
	g.Go("serial-executor", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case fn := <-s.queue:
				func() {
					defer g.recoverTask("serial-item")
					fn(ctx)
				}()
			}
		}
	})
	return s
}

// Submit enqueues fn for ordered execution. It blocks only when the queue is
// full; fn is dropped if the owning scope is cancelled before it runs.
func (s *Serial) Submit(fn func(ctx context.Context)) {
	select {
	case s.queue <- fn:
	case <-s.done:
		if s.logger != nil {
			s.logger.Debug("Serial item dropped, scope cancelled")
		}
	}
}
