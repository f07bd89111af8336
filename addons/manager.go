package addons

import (
	"context"
	"sync"

	"browserd/engine"

	"go.uber.org/zap"
)

// Manager tracks the installed extension set and which extensions are
// registered for future update checks.
type Manager struct {
	eng    engine.Engine
	logger *zap.SugaredLogger

	mu            sync.Mutex
	installed     []engine.Extension
	futureUpdates []engine.Extension
}

// NewManager creates a manager over the given engine.
func NewManager(eng engine.Engine, logger *zap.SugaredLogger) *Manager {
	return &Manager{eng: eng, logger: logger}
}

// InstalledAddons returns the engine's current extension set, refreshing the
// manager's view of it.
func (m *Manager) InstalledAddons(ctx context.Context) ([]engine.Extension, error) {
	exts, err := m.eng.InstalledExtensions(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.installed = append([]engine.Extension(nil), exts...)
	m.mu.Unlock()
	return exts, nil
}

// SetInstalled records an extension set reported by the engine's
// extensions-loaded notification.
func (m *Manager) SetInstalled(exts []engine.Extension) {
	m.mu.Lock()
	m.installed = append([]engine.Extension(nil), exts...)
	m.mu.Unlock()
}

// Installed returns the last known extension set.
func (m *Manager) Installed() []engine.Extension {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Extension(nil), m.installed...)
}

// RegisterForFutureUpdates records the extensions the updater should include
// in subsequent update checks. Replaces the previous registration.
func (m *Manager) RegisterForFutureUpdates(exts []engine.Extension) {
	m.mu.Lock()
	m.futureUpdates = append([]engine.Extension(nil), exts...)
	m.mu.Unlock()
	m.logger.Debugw("Extensions registered for future updates", "count", len(exts))
}

// FutureUpdates returns the extensions registered for update checks.
func (m *Manager) FutureUpdates() []engine.Extension {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Extension(nil), m.futureUpdates...)
}

// AnyUnsupported reports whether any extension in exts is unsupported.
func AnyUnsupported(exts []engine.Extension) bool {
	for _, ext := range exts {
		if ext.Unsupported {
			return true
		}
	}
	return false
}
