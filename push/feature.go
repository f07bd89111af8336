package push

import (
	"context"
	"fmt"
	"sync"

	"browserd/util/taskgroup"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feature owns the push transport: a Redis pub/sub subscription feeding the
// processor. It is optional - when push is not configured the feature is
// simply never constructed and nothing here runs.
type Feature struct {
	client    *redis.Client
	channel   string
	processor *Processor
	logger    *zap.SugaredLogger

	initOnce sync.Once
}

// NewFeature creates the feature against the given Redis address.
func NewFeature(addr, channel string, processor *Processor, logger *zap.SugaredLogger) *Feature {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Feature{
		client:    client,
		channel:   channel,
		processor: processor,
		logger:    logger,
	}
}

// Initialize performs the feature's one-time service setup. It is safe to
// call more than once; only the first call does work.
func (f *Feature) Initialize(ctx context.Context) error {
	var err error
	f.initOnce.Do(func() {
		if pingErr := f.client.Ping(ctx).Err(); pingErr != nil {
			err = fmt.Errorf("push transport unreachable: %w", pingErr)
			return
		}
		f.logger.Infow("Push feature initialized", "channel", f.channel)
	})
	return err
}

// Start subscribes the channel and pumps messages into the processor on the
// application scope. The loop exits when the scope is cancelled.
func (f *Feature) Start(g *taskgroup.Group) {
	g.Go("push-receive", func(ctx context.Context) error {
		sub := f.client.Subscribe(ctx, f.channel)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return fmt.Errorf("push subscription closed")
				}
				f.processor.Process([]byte(msg.Payload))
			}
		}
	})
}

// Close releases the transport connection.
func (f *Feature) Close() error {
	return f.client.Close()
}
