package addons

import (
	"context"
	"time"

	"browserd/engine"
	"browserd/tabs"
	"browserd/util/taskgroup"

	"go.uber.org/zap"
)

const hookTimeout = 15 * time.Second

// ScreenHost is where the controller attaches its content screen. The real
// host is the UI shell; tests use a recording fake.
type ScreenHost interface {
	Attach(screen string)
}

// ScreenAddonsManager is the single content screen the controller attaches.
const ScreenAddonsManager = "addons-manager"

// Controller wires the add-on management screen: it registers the manager and
// updater with the process-wide provider, subscribes the web-extension hooks,
// and attaches the content screen on first creation.
type Controller struct {
	provider *Provider
	manager  *Manager
	updater  *Updater
	checker  *UnsupportedChecker
	usecases *tabs.UseCases
	runtime  engine.ExtensionEvents
	host     ScreenHost
	group    *taskgroup.Group
	logger   *zap.SugaredLogger
}

// ControllerOptions carries the controller's collaborators.
type ControllerOptions struct {
	Provider *Provider
	Manager  *Manager
	Updater  *Updater
	Checker  *UnsupportedChecker
	UseCases *tabs.UseCases
	Runtime  engine.ExtensionEvents
	Host     ScreenHost
	Group    *taskgroup.Group
}

// NewController creates the controller.
func NewController(opts ControllerOptions, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		provider: opts.Provider,
		manager:  opts.Manager,
		updater:  opts.Updater,
		checker:  opts.Checker,
		usecases: opts.UseCases,
		runtime:  opts.Runtime,
		host:     opts.Host,
		group:    opts.Group,
		logger:   logger,
	}
}

// Create runs the controller's creation path: provider registration,
// web-extension hook subscription, and - only when not recreated from saved
// state - attaching the single content screen. Re-creation re-registers; the
// provider holds the latest registration.
func (c *Controller) Create(restoredFromSavedState bool) {
	c.provider.Register(c.manager, c.updater)
	InitializeSupport(c.runtime, c)

	if !restoredFromSavedState {
		c.host.Attach(ScreenAddonsManager)
	}
}

// OnNewTab opens and selects a new tab for an extension request.
func (c *Controller) OnNewTab(url string, session engine.Session) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	return c.usecases.AddTab(ctx, url, true, session)
}

// OnCloseTab removes the tab.
func (c *Controller) OnCloseTab(tabID string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := c.usecases.RemoveTab(ctx, tabID); err != nil {
		c.logger.Warnw("Extension close-tab request failed", "tab", tabID, "error", err)
	}
}

// OnSelectTab makes the tab active.
func (c *Controller) OnSelectTab(tabID string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := c.usecases.SelectTab(ctx, tabID); err != nil {
		c.logger.Warnw("Extension select-tab request failed", "tab", tabID, "error", err)
	}
}

// OnExtensionsLoaded registers the loaded set for future update checks and
// toggles the unsupported-add-on watchdog to match: registered when any
// loaded extension is unsupported, unregistered otherwise.
func (c *Controller) OnExtensionsLoaded(extensions []engine.Extension) {
	c.manager.SetInstalled(extensions)
	c.manager.RegisterForFutureUpdates(extensions)

	if AnyUnsupported(extensions) {
		c.checker.Register(c.group)
	} else {
		c.checker.Unregister()
	}
}

// OnUpdatePermissionRequest forwards to the updater's handler.
func (c *Controller) OnUpdatePermissionRequest(current, updated engine.Extension, decide func(granted bool)) {
	c.updater.OnUpdatePermissionRequest(current, updated, decide)
}
