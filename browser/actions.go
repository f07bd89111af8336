package browser

// Action is a value describing one state transition. The reducer owns all
// transitions; nothing outside the store mutates State.
type Action interface {
	name() string
}

// TabAdded adds a tab, optionally selecting it.
type TabAdded struct {
	Tab    Tab
	Select bool
}

func (TabAdded) name() string { return "TabAdded" }

// TabRemoved removes the tab with the given ID. Removing the selected tab
// moves selection to the nearest remaining neighbor.
type TabRemoved struct {
	ID string
}

func (TabRemoved) name() string { return "TabRemoved" }

// TabSelected makes the tab with the given ID active.
type TabSelected struct {
	ID string
}

func (TabSelected) name() string { return "TabSelected" }

// TabsRestored replaces the tab set with a restored session. Issued once
// during startup by the restore path.
type TabsRestored struct {
	Tabs          []Tab
	SelectedTabID string
}

func (TabsRestored) name() string { return "TabsRestored" }

// LowMemory signals OS memory pressure into the store. It carries no state
// change of its own; subscribers (caches, the engine bridge) react to it.
type LowMemory struct {
	Level int
}

func (LowMemory) name() string { return "LowMemory" }
