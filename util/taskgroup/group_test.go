package taskgroup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestGroupRunsTasks(t *testing.T) {
	AssertNoLeaks(t)

	g := NewGroup(context.Background(), testLogger())
	defer g.CancelAll()

	done := make(chan struct{})
	g.Go("work", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	g.Wait()
}

func TestCancelAllReachesEveryTask(t *testing.T) {
	AssertNoLeaks(t)

	g := NewGroup(context.Background(), testLogger())

	// A cancellable long-running stand-in task: it only exits when the
	// scope's context is cancelled.
	var observed atomic.Int32
	for i := 0; i < 3; i++ {
		g.Go("long-running", func(ctx context.Context) error {
			<-ctx.Done()
			observed.Add(1)
			return nil
		})
	}

	g.CancelAll()
	g.Wait()

	assert.Equal(t, int32(3), observed.Load(), "every task must observe cancellation")
	assert.True(t, g.Cancelled())
}

func TestCancelAllIsIdempotent(t *testing.T) {
	g := NewGroup(context.Background(), testLogger())
	g.CancelAll()
	g.CancelAll()
	assert.True(t, g.Cancelled())
}

func TestCancelledGroupRejectsNewWork(t *testing.T) {
	g := NewGroup(context.Background(), testLogger())
	g.CancelAll()

	ran := make(chan struct{}, 1)
	g.Go("late", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})
	g.Wait()

	select {
	case <-ran:
		t.Fatal("task ran on a cancelled scope")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTaskPanicIsRecovered(t *testing.T) {
	g := NewGroup(context.Background(), testLogger())

	g.Go("panicky", func(ctx context.Context) error {
		panic("boom")
	})
	g.Wait() // must not crash the test binary
}

func TestOnPanicHandlerObservesTaskPanics(t *testing.T) {
	g := NewGroup(context.Background(), testLogger())

	type report struct {
		name  string
		value any
	}
	got := make(chan report, 2)
	g.OnPanic(func(name string, value any) {
		got <- report{name, value}
	})

	g.Go("panicky", func(ctx context.Context) error {
		panic("boom")
	})
	s := NewSerial(g, testLogger())
	s.Submit(func(ctx context.Context) { panic("bang") })

	seen := map[string]any{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-got:
			seen[r.name] = r.value
		case <-time.After(time.Second):
			t.Fatal("panic handler not invoked")
		}
	}
	assert.Equal(t, "boom", seen["panicky"])
	assert.Equal(t, "bang", seen["serial-item"])

	g.CancelAll()
	g.Wait()
}

func TestSerialRunsInSubmissionOrder(t *testing.T) {
	AssertNoLeaks(t)

	g := NewGroup(context.Background(), testLogger())
	s := NewSerial(g, testLogger())

	var order []int
	done := make(chan struct{})
	for i := 1; i <= 5; i++ {
		i := i
		s.Submit(func(ctx context.Context) {
			order = append(order, i)
			if i == 5 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serial items did not run")
	}
	require.Equal(t, []int{1, 2, 3, 4, 5}, order)

	g.CancelAll()
	g.Wait()
}

func TestSerialDropsWorkAfterCancel(t *testing.T) {
	g := NewGroup(context.Background(), testLogger())
	s := NewSerial(g, testLogger())

	g.CancelAll()
	g.Wait()

	// Must not block even though the worker is gone.
	for i := 0; i < 100; i++ {
		s.Submit(func(ctx context.Context) {})
	}
}
