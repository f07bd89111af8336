package browser

import (
	"sync"

	"go.uber.org/zap"
)

// Store is the single source of truth for browser/session state. State is
// read with State() and changed only by dispatching actions; subscribers are
// notified after every dispatch that changed the tab set or selection.
//
// Dispatches are serialized by an internal mutex. Subscribers run on the
// dispatching goroutine and must not dispatch re-entrantly.
type Store struct {
	mu     sync.Mutex
	state  State
	logger *zap.SugaredLogger

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore creates an empty store.
func NewStore(logger *zap.SugaredLogger) *Store {
	return &Store{
		logger: logger,
		subs:   make(map[int]func(State)),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Copy()
}

// Dispatch applies an action through the reducer and notifies subscribers
// when the session set changed.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	next, changed := reduce(s.state, a)
	s.state = next
	snapshot := next.Copy()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debugw("Action dispatched", "action", a.name(), "changed", changed)
	}

	if changed {
		s.notify(snapshot)
	}
}

// Subscribe registers fn to run after every session-set change. The returned
// function removes the subscription and is safe to call more than once.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// reduce applies a to state and reports whether the session set changed.
func reduce(state State, a Action) (State, bool) {
	switch act := a.(type) {
	case TabAdded:
		state.Tabs = append(append([]Tab(nil), state.Tabs...), act.Tab)
		if act.Select || len(state.Tabs) == 1 {
			state.SelectedTabID = act.Tab.ID
		}
		return state, true

	case TabRemoved:
		idx := -1
		for i := range state.Tabs {
			if state.Tabs[i].ID == act.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return state, false
		}
		tabs := append([]Tab(nil), state.Tabs[:idx]...)
		tabs = append(tabs, state.Tabs[idx+1:]...)
		state.Tabs = tabs
		if state.SelectedTabID == act.ID {
			state.SelectedTabID = ""
			if len(tabs) > 0 {
				n := idx
				if n >= len(tabs) {
					n = len(tabs) - 1
				}
				state.SelectedTabID = tabs[n].ID
			}
		}
		return state, true

	case TabSelected:
		if state.FindTab(act.ID) == nil || state.SelectedTabID == act.ID {
			return state, false
		}
		state.SelectedTabID = act.ID
		return state, true

	case TabsRestored:
		state.Tabs = append([]Tab(nil), act.Tabs...)
		state.SelectedTabID = act.SelectedTabID
		if state.FindTab(state.SelectedTabID) == nil {
			state.SelectedTabID = ""
			if len(state.Tabs) > 0 {
				state.SelectedTabID = state.Tabs[0].ID
			}
		}
		state.Restored = true
		return state, true

	case LowMemory:
		// Not a session change; memory-pressure reactions subscribe to the
		// store but must not trigger an auto-save.
		return state, false

	default:
		return state, false
	}
}
