package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop().Sugar())
}

func TestAddTabSelectsFirstTab(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a", URL: "https://example.com"}})

	state := s.State()
	require.Len(t, state.Tabs, 1)
	assert.Equal(t, "a", state.SelectedTabID, "first tab becomes selected even without Select")
}

func TestAddTabWithSelect(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})
	s.Dispatch(TabAdded{Tab: Tab{ID: "b"}, Select: true})

	assert.Equal(t, "b", s.State().SelectedTabID)
}

func TestRemoveSelectedTabMovesSelectionToNeighbor(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})
	s.Dispatch(TabAdded{Tab: Tab{ID: "b"}, Select: true})
	s.Dispatch(TabAdded{Tab: Tab{ID: "c"}})

	s.Dispatch(TabRemoved{ID: "b"})

	state := s.State()
	require.Len(t, state.Tabs, 2)
	assert.Equal(t, "c", state.SelectedTabID)

	s.Dispatch(TabRemoved{ID: "c"})
	assert.Equal(t, "a", s.State().SelectedTabID)
}

func TestRemoveUnknownTabChangesNothing(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})

	var notified int
	s.Subscribe(func(State) { notified++ })
	s.Dispatch(TabRemoved{ID: "missing"})

	assert.Equal(t, 0, notified)
	assert.Len(t, s.State().Tabs, 1)
}

func TestSelectTab(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})
	s.Dispatch(TabAdded{Tab: Tab{ID: "b"}})

	var notified int
	unsub := s.Subscribe(func(State) { notified++ })
	defer unsub()

	s.Dispatch(TabSelected{ID: "b"})
	assert.Equal(t, "b", s.State().SelectedTabID)
	assert.Equal(t, 1, notified)

	// Re-selecting the current tab is not a change.
	s.Dispatch(TabSelected{ID: "b"})
	assert.Equal(t, 1, notified)

	// Selecting an unknown tab is ignored.
	s.Dispatch(TabSelected{ID: "missing"})
	assert.Equal(t, "b", s.State().SelectedTabID)
	assert.Equal(t, 1, notified)
}

func TestTabsRestored(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabsRestored{
		Tabs:          []Tab{{ID: "a"}, {ID: "b"}},
		SelectedTabID: "b",
	})

	state := s.State()
	assert.True(t, state.Restored)
	assert.Equal(t, "b", state.SelectedTabID)
	assert.Len(t, state.Tabs, 2)
}

func TestTabsRestoredWithStaleSelection(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabsRestored{
		Tabs:          []Tab{{ID: "a"}},
		SelectedTabID: "gone",
	})

	assert.Equal(t, "a", s.State().SelectedTabID)
}

func TestLowMemoryIsNotASessionChange(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})

	var notified int
	s.Subscribe(func(State) { notified++ })
	s.Dispatch(LowMemory{Level: 15})

	assert.Equal(t, 0, notified)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore()

	var notified int
	unsub := s.Subscribe(func(State) { notified++ })
	s.Dispatch(TabAdded{Tab: Tab{ID: "a"}})
	unsub()
	unsub() // safe to call twice
	s.Dispatch(TabAdded{Tab: Tab{ID: "b"}})

	assert.Equal(t, 1, notified)
}

func TestStateReturnsCopy(t *testing.T) {
	s := newTestStore()
	s.Dispatch(TabAdded{Tab: Tab{ID: "a", URL: "https://example.com"}})

	state := s.State()
	state.Tabs[0].URL = "https://mutated.invalid"

	assert.Equal(t, "https://example.com", s.State().Tabs[0].URL)
}

func TestLifecycleTransitions(t *testing.T) {
	l := NewLifecycle()
	assert.True(t, l.Foreground())

	var transitions []bool
	l.OnTransition(func(fg bool) { transitions = append(transitions, fg) })

	l.EnterBackground()
	l.EnterBackground() // idempotent
	l.EnterForeground()

	assert.False(t, transitions[0])
	assert.True(t, transitions[1])
	assert.Len(t, transitions, 2)
	assert.True(t, l.Foreground())
}

func TestLifecycleNotifiesEveryObserver(t *testing.T) {
	l := NewLifecycle()

	var first, second int
	l.OnTransition(func(bool) { first++ })
	l.OnTransition(func(bool) { second++ })

	l.EnterBackground()
	l.EnterForeground()

	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
}
