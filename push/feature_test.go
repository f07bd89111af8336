package push

import (
	"context"
	"testing"
	"time"

	"browserd/util/taskgroup"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFeatureInitialize(t *testing.T) {
	srv := miniredis.RunT(t)
	p, _, _, _ := newTestProcessor(t)

	f := NewFeature(srv.Addr(), "push", p, zap.NewNop().Sugar())
	defer f.Close()

	require.NoError(t, f.Initialize(context.Background()))
	// Subsequent calls are no-ops, not re-initializations.
	require.NoError(t, f.Initialize(context.Background()))
}

func TestFeatureInitializeUnreachableTransport(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)

	f := NewFeature("127.0.0.1:1", "push", p, zap.NewNop().Sugar())
	defer f.Close()

	assert.Error(t, f.Initialize(context.Background()))
}

func TestFeatureDeliversPublishedMessages(t *testing.T) {
	srv := miniredis.RunT(t)
	p, pub, auth, s := newTestProcessor(t)

	got := make(chan Message, 1)
	p.AddObserver(func(msg Message) { got <- msg })

	f := NewFeature(srv.Addr(), "push", p, zap.NewNop().Sugar())
	defer f.Close()
	p.Install(f)
	require.NoError(t, f.Initialize(context.Background()))

	g := taskgroup.NewGroup(context.Background(), zap.NewNop().Sugar())
	defer func() {
		g.CancelAll()
		g.Wait()
	}()
	f.Start(g)

	raw := buildEnvelope(t, pub, auth, s, "/apps/mail", []byte("ping"), time.Now().Add(time.Hour))

	// The subscription races feature startup; retry until the subscriber is
	// attached.
	deadline := time.Now().Add(3 * time.Second)
	for {
		if n := srv.Publish("push", string(raw)); n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case msg := <-got:
		assert.Equal(t, "/apps/mail", msg.Scope)
		assert.Equal(t, []byte("ping"), msg.Payload)
	case <-time.After(3 * time.Second):
		t.Fatal("message was not delivered")
	}
}
