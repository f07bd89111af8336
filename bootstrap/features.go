package bootstrap

import (
	"context"
	"fmt"
	"time"

	"browserd/addons"
	"browserd/push"
	"browserd/uploads"
)

// initFeatures initializes the optional features after session restore has
// been issued. Push absence is a valid, silent state; upload cleanup runs
// independently on the task scope.
func (a *App) initFeatures(ctx context.Context) error {
	if a.Config.Push.Enabled {
		if err := a.initPush(ctx); err != nil {
			return err
		}
	} else {
		a.Sugar.Debug("Push feature not configured")
	}

	cleaner := &uploads.Cleaner{
		Dir:    a.Config.GetUploadsDir(),
		MaxAge: a.Config.Uploads.MaxAge,
		Logger: a.Sugar,
	}
	a.Group.Go("upload-cleanup", cleaner.Clean)

	return nil
}

// initPush wires the push pipeline: processor install, engine integration,
// one-time account init on first receipt, then the feature's own
// initialization and receive loop.
func (a *App) initPush(ctx context.Context) error {
	keys, err := push.NewKeys(a.Config.Push.SubscriptionKey, a.Config.Push.AuthSecret)
	if err != nil {
		return fmt.Errorf("push subscription keys: %w", err)
	}
	verifyKey, err := push.ParseVerifyKey(a.Config.Push.AuthPublicKey)
	if err != nil {
		return fmt.Errorf("push auth key: %w", err)
	}

	processor := push.NewProcessor(keys, verifyKey, a.Sugar)
	feature := push.NewFeature(a.Config.Push.Addr, a.Config.Push.Channel, processor, a.Sugar)

	processor.Install(feature)

	integration := push.NewEngineIntegration(a.Engine, a.Sugar)
	integration.Start(processor)

	processor.OnFirstMessage(a.initAccountManager)

	if err := feature.Initialize(ctx); err != nil {
		// The transport may come up later; the receive loop reconnects
		// through the client's own retry behavior.
		a.Sugar.Errorw("Push feature initialization failed", "error", err)
	}
	feature.Start(a.Group)

	a.PushProcessor = processor
	a.PushFeature = feature
	return nil
}

// initAccountManager performs the one-time account-manager initialization
// keyed off first push receipt.
func (a *App) initAccountManager() {
	a.Sugar.Info("Account manager initialized on first push receipt")
}

// ShowAddonsScreen creates (or re-creates) the add-on management screen
// controller. restoredFromSavedState distinguishes a fresh creation, which
// attaches the content screen, from a configuration-restore, which must not
// stack a second one.
func (a *App) ShowAddonsScreen(host addons.ScreenHost, restoredFromSavedState bool) error {
	if a.UseCases == nil || a.Engine == nil {
		return fmt.Errorf("add-on screen requires main-process initialization")
	}

	if a.AddonsController == nil {
		a.AddonsManager = addons.NewManager(a.Engine, a.Sugar)

		updater, err := addons.NewUpdater(
			a.Config.Addons.CatalogURL,
			a.Config.Addons.AutoGrantPermissions,
			a.Sugar)
		if err != nil {
			return err
		}
		a.AddonsUpdater = updater

		a.AddonsChecker = addons.NewUnsupportedChecker(
			a.Config.Addons.UpdateCheckInterval,
			a.checkUnsupportedAddons,
			a.Sugar)

		a.AddonsController = addons.NewController(addons.ControllerOptions{
			Provider: a.AddonsProvider,
			Manager:  a.AddonsManager,
			Updater:  a.AddonsUpdater,
			Checker:  a.AddonsChecker,
			UseCases: a.UseCases,
			Runtime:  a.Engine,
			Host:     host,
			Group:    a.Group,
		}, a.Sugar)

		a.Group.Go("addon-update-check", func(ctx context.Context) error {
			ticker := time.NewTicker(a.Config.Addons.UpdateCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.checkAddonUpdates(ctx)
				}
			}
		})
	}

	a.AddonsController.Create(restoredFromSavedState)
	return nil
}

// checkAddonUpdates runs one catalog pass over the extensions registered for
// future updates, validating each candidate's manifest before announcing it.
func (a *App) checkAddonUpdates(ctx context.Context) {
	exts := a.AddonsManager.FutureUpdates()
	if len(exts) == 0 {
		return
	}

	updates, err := a.AddonsUpdater.CheckForUpdates(ctx, exts)
	if err != nil {
		a.Sugar.Warnw("Add-on update check failed", "error", err)
		return
	}

	for _, upd := range updates {
		if upd.ManifestURL != "" {
			manifest, err := a.AddonsUpdater.FetchManifest(ctx, upd.ManifestURL)
			if err != nil {
				a.Sugar.Warnw("Add-on manifest fetch failed",
					"addon", upd.Extension.ID, "error", err)
				continue
			}
			if err := a.AddonsUpdater.ValidateManifest(manifest); err != nil {
				a.Sugar.Warnw("Add-on manifest rejected",
					"addon", upd.Extension.ID, "error", err)
				continue
			}
		}
		a.Sugar.Infow("Add-on update available",
			"addon", upd.Extension.ID,
			"current", upd.Extension.Version,
			"new", upd.NewVersion)
	}
}

// checkUnsupportedAddons is the periodic unsupported-add-on check: refresh
// the installed set and drop the subscription once nothing unsupported
// remains.
func (a *App) checkUnsupportedAddons(ctx context.Context) {
	exts, err := a.AddonsManager.InstalledAddons(ctx)
	if err != nil {
		a.Sugar.Warnw("Unsupported add-on check failed", "error", err)
		return
	}
	if !addons.AnyUnsupported(exts) {
		a.Sugar.Info("No unsupported add-ons remain")
		a.AddonsChecker.Unregister()
		return
	}
	a.Sugar.Infow("Unsupported add-ons still present", "count", len(exts))
}
