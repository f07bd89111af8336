// Package engine defines the rendering-engine contract and the websocket
// client that speaks to the out-of-process engine. The engine owns rendering,
// JS execution and the web-extension runtime; this layer only issues commands
// and receives events.
package engine

import (
	"context"
	"net/http"
)

// Session is a handle on one live tab's underlying rendering/JS execution
// context inside the engine process.
type Session interface {
	// ID is the engine-side session identifier.
	ID() string
	// LoadURL navigates the session.
	LoadURL(ctx context.Context, url string) error
	// Close releases the engine-side context.
	Close() error
}

// Extension describes one installed web extension as reported by the engine.
type Extension struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
	// Unsupported marks an extension whose capabilities the current engine
	// version can no longer run.
	Unsupported bool `json:"unsupported"`
	// ManifestURL points at the extension's manifest for update checks.
	ManifestURL string `json:"manifest_url,omitempty"`
}

// ExtensionEvents is the registration surface for web-extension runtime
// events. Each hook replaces the previous registration; hooks may issue
// engine commands and must be safe to run concurrently with one another.
type ExtensionEvents interface {
	// OnNewTabRequest fires when an extension asks for a new tab. The hook
	// returns the created tab's identifier.
	OnNewTabRequest(fn func(url string, session Session) (string, error))
	// OnCloseTabRequest fires when an extension closes a tab.
	OnCloseTabRequest(fn func(tabID string))
	// OnSelectTabRequest fires when an extension activates a tab.
	OnSelectTabRequest(fn func(tabID string))
	// OnExtensionsLoaded fires once the engine has finished loading the
	// installed extension set, and again whenever the set changes.
	OnExtensionsLoaded(fn func(extensions []Extension))
	// OnUpdatePermissionRequest fires when an updated extension needs new
	// permissions; decide grants or denies.
	OnUpdatePermissionRequest(fn func(current, updated Extension, decide func(granted bool)))
}

// Engine is the rendering/extension engine collaborator.
type Engine interface {
	ExtensionEvents

	// WarmUp requests engine startup. The engine may defer work internally;
	// WarmUp returning nil means the request was issued, not that the engine
	// is fully ready.
	WarmUp(ctx context.Context) error
	// NewSession creates a fresh engine session.
	NewSession(ctx context.Context, private bool) (Session, error)
	// DeliverPushMessage forwards a decrypted push payload to the service
	// worker registered for scope.
	DeliverPushMessage(ctx context.Context, scope string, payload []byte) error
	// InstalledExtensions lists the engine's installed web extensions.
	InstalledExtensions(ctx context.Context) ([]Extension, error)
	// BindHTTPClient hands the engine the shared HTTP client used for its
	// native transport (health probes, resource fetches).
	BindHTTPClient(client *http.Client)
	// Close tears down the control connection.
	Close() error
}
