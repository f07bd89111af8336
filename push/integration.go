package push

import (
	"context"
	"time"

	"browserd/engine"

	"go.uber.org/zap"
)

const deliverTimeout = 10 * time.Second

// EngineIntegration forwards processed push messages to the rendering
// engine's service workers.
type EngineIntegration struct {
	eng    engine.Engine
	logger *zap.SugaredLogger
}

// NewEngineIntegration creates the forwarder.
func NewEngineIntegration(eng engine.Engine, logger *zap.SugaredLogger) *EngineIntegration {
	return &EngineIntegration{eng: eng, logger: logger}
}

// Start registers the integration as a processor observer.
func (i *EngineIntegration) Start(p *Processor) {
	p.AddObserver(func(msg Message) {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := i.eng.DeliverPushMessage(ctx, msg.Scope, msg.Payload); err != nil {
			i.logger.Warnw("Failed to forward push message to engine",
				"scope", msg.Scope, "error", err)
		}
	})
}
