package addons

import "browserd/engine"

// SupportHooks is the capability interface the web-extension runtime calls
// back into: one method per hook. The controller implements it; no anonymous
// closures capturing screen state.
type SupportHooks interface {
	// OnNewTab opens a new tab for an extension-initiated request and returns
	// the new tab's identifier.
	OnNewTab(url string, session engine.Session) (string, error)
	// OnCloseTab removes the tab.
	OnCloseTab(tabID string)
	// OnSelectTab makes the tab active.
	OnSelectTab(tabID string)
	// OnExtensionsLoaded receives the loaded extension set.
	OnExtensionsLoaded(extensions []engine.Extension)
	// OnUpdatePermissionRequest decides an updated extension's permission
	// request.
	OnUpdatePermissionRequest(current, updated engine.Extension, decide func(granted bool))
}

// InitializeSupport subscribes hooks to the engine's web-extension event
// surface. Each registration replaces any previous one.
func InitializeSupport(runtime engine.ExtensionEvents, hooks SupportHooks) {
	runtime.OnNewTabRequest(hooks.OnNewTab)
	runtime.OnCloseTabRequest(hooks.OnCloseTab)
	runtime.OnSelectTabRequest(hooks.OnSelectTab)
	runtime.OnExtensionsLoaded(hooks.OnExtensionsLoaded)
	runtime.OnUpdatePermissionRequest(hooks.OnUpdatePermissionRequest)
}
