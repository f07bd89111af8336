// Package browser holds the shared browser state and the store that owns it.
// All session/tab state lives here and is mutated only via dispatched actions.
package browser

// Tab is one open tab's UI-visible projection. The underlying engine session
// is addressed separately by ID; the store never holds engine handles.
type Tab struct {
	ID       string `msgpack:"id"`
	URL      string `msgpack:"url"`
	Title    string `msgpack:"title"`
	Private  bool   `msgpack:"private"`
	LastUsed int64  `msgpack:"last_used"`
}

// State is the complete UI-visible browser state. Values handed out by the
// store are copies; mutating them has no effect on the store.
type State struct {
	Tabs          []Tab
	SelectedTabID string
	// Restored is set once the persisted session has been applied.
	Restored bool
}

// Copy returns a deep copy of the state.
func (s State) Copy() State {
	tabs := make([]Tab, len(s.Tabs))
	copy(tabs, s.Tabs)
	s.Tabs = tabs
	return s
}

// FindTab returns the tab with the given ID, or nil.
func (s State) FindTab(id string) *Tab {
	for i := range s.Tabs {
		if s.Tabs[i].ID == id {
			return &s.Tabs[i]
		}
	}
	return nil
}

// SelectedTab returns the currently selected tab, or nil.
func (s State) SelectedTab() *Tab {
	return s.FindTab(s.SelectedTabID)
}
