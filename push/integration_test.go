package push

import (
	"testing"
	"time"

	"browserd/engine/enginetest"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEngineIntegrationForwardsMessages(t *testing.T) {
	p, pub, auth, s := newTestProcessor(t)
	eng := enginetest.New()

	NewEngineIntegration(eng, zap.NewNop().Sugar()).Start(p)

	p.Process(buildEnvelope(t, pub, auth, s, "/apps/mail", []byte("ping"), time.Now().Add(time.Hour)))

	assert.Contains(t, eng.Calls(), "DeliverPushMessage")
}
