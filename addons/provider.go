// Package addons manages installed web extensions: update checks, the
// unsupported-add-on watchdog, and the wiring between the engine's
// web-extension runtime and the tab use-cases.
package addons

import "sync"

// Provider is the process-wide registration point for the add-on manager and
// updater, so components needing add-on state can reach them without a direct
// reference to the management screen. It holds the latest registration;
// re-registering replaces the previous pair.
type Provider struct {
	mu      sync.Mutex
	manager *Manager
	updater *Updater
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Register installs the manager/updater pair. Latest registration wins.
func (p *Provider) Register(m *Manager, u *Updater) {
	p.mu.Lock()
	p.manager = m
	p.updater = u
	p.mu.Unlock()
}

// Manager returns the registered manager, or nil.
func (p *Provider) Manager() *Manager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manager
}

// Updater returns the registered updater, or nil.
func (p *Provider) Updater() *Updater {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updater
}
