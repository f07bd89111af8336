package addons

import (
	"context"
	"sync"
	"testing"
	"time"

	"browserd/browser"
	"browserd/engine"
	"browserd/engine/enginetest"
	"browserd/tabs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingHost records every attached screen.
type recordingHost struct {
	mu      sync.Mutex
	screens []string
}

func (h *recordingHost) Attach(screen string) {
	h.mu.Lock()
	h.screens = append(h.screens, screen)
	h.mu.Unlock()
}

func (h *recordingHost) attached() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.screens...)
}

type controllerFixture struct {
	controller *Controller
	provider   *Provider
	manager    *Manager
	checker    *UnsupportedChecker
	store      *browser.Store
	eng        *enginetest.Fake
	host       *recordingHost
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	eng := enginetest.New()
	store := browser.NewStore(logger)
	usecases := tabs.NewUseCases(store, eng, logger)

	provider := NewProvider()
	manager := NewManager(eng, logger)
	updater, err := NewUpdater("", false, logger)
	require.NoError(t, err)
	checker := NewUnsupportedChecker(time.Minute, func(ctx context.Context) {}, logger)
	host := &recordingHost{}

	c := NewController(ControllerOptions{
		Provider: provider,
		Manager:  manager,
		Updater:  updater,
		Checker:  checker,
		UseCases: usecases,
		Runtime:  eng,
		Host:     host,
		Group:    newTestGroup(t),
	}, logger)

	return &controllerFixture{
		controller: c,
		provider:   provider,
		manager:    manager,
		checker:    checker,
		store:      store,
		eng:        eng,
		host:       host,
	}
}

func TestCreateAttachesScreenOnce(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.Create(false)

	assert.Equal(t, []string{ScreenAddonsManager}, f.host.attached())
	assert.Same(t, f.manager, f.provider.Manager())
	assert.NotNil(t, f.provider.Updater())
}

func TestCreateFromSavedStateSkipsAttach(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.Create(true)

	assert.Empty(t, f.host.attached(), "recreation from saved state must not re-attach")
	assert.Same(t, f.manager, f.provider.Manager(), "registration still happens")
}

func TestExtensionNewTabRequestOpensAddressableTab(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.Create(false)

	id, err := f.eng.FireNewTab("https://requested.example")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state := f.store.State()
	require.NotNil(t, state.FindTab(id))
	assert.Equal(t, id, state.SelectedTabID, "extension-opened tabs are selected")

	f.eng.FireSelectTab(id)
	f.eng.FireCloseTab(id)
	assert.Nil(t, f.store.State().FindTab(id))
}

func TestExtensionsLoadedTogglesChecker(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.Create(false)

	f.eng.FireExtensionsLoaded([]engine.Extension{
		{ID: "ok", Version: "1.0", Enabled: true},
		{ID: "legacy", Version: "0.1", Unsupported: true},
	})
	assert.True(t, f.checker.Registered())
	assert.Len(t, f.manager.Installed(), 2)
	assert.Len(t, f.manager.FutureUpdates(), 2)

	// The set changes and the unsupported extension is gone: the
	// subscription must come down with it.
	f.eng.FireExtensionsLoaded([]engine.Extension{
		{ID: "ok", Version: "1.0", Enabled: true},
	})
	assert.False(t, f.checker.Registered())
	assert.Len(t, f.manager.Installed(), 1)

	// And back up when an unsupported one reappears.
	f.eng.FireExtensionsLoaded([]engine.Extension{
		{ID: "legacy", Version: "0.1", Unsupported: true},
	})
	assert.True(t, f.checker.Registered())
}

func TestUpdatePermissionDeniedWithoutAutoGrant(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.Create(false)

	granted, err := f.eng.FireUpdatePermission(
		engine.Extension{ID: "x", Version: "1.0"},
		engine.Extension{ID: "x", Version: "2.0"},
	)
	require.NoError(t, err)
	assert.False(t, granted)
}
