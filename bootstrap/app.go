package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"browserd/addons"
	"browserd/api"
	"browserd/browser"
	"browserd/config"
	"browserd/crash"
	"browserd/engine"
	"browserd/icons"
	"browserd/metrics"
	"browserd/push"
	"browserd/session"
	"browserd/tabs"
	"browserd/util/taskgroup"

	"go.uber.org/zap"
)

// App represents the browserd application with all its components. It is the
// explicit dependency root: one instance per process, constructed in main,
// references passed down from here.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Concurrency
	Group  *taskgroup.Group
	Serial *taskgroup.Serial

	// Browser state
	Store     *browser.Store
	Lifecycle *browser.Lifecycle
	Engine    engine.Engine
	UseCases  *tabs.UseCases

	// Persistence
	SessionStorage *session.Storage
	AutoSave       *session.AutoSave

	// Services
	IconCache     *icons.Cache
	CrashReporter *crash.Reporter
	PushProcessor *push.Processor
	PushFeature   *push.Feature

	// Add-ons
	AddonsProvider   *addons.Provider
	AddonsManager    *addons.Manager
	AddonsUpdater    *addons.Updater
	AddonsChecker    *addons.UnsupportedChecker
	AddonsController *addons.Controller

	// Diagnostics
	Diagnostics *api.Server

	httpClient *http.Client

	// engineFactory builds the engine; overridable before Start.
	engineFactory func() engine.Engine

	engineMu sync.Mutex
}

// NewApp creates a new application instance and initializes the lightweight
// components every process role needs. Heavy main-process construction
// (engine, session storage) happens in Start.
func NewApp(ctx context.Context) (*App, error) {
	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar.Info("browserd starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}

	return NewAppWithConfig(ctx, cfg, logger, sugar)
}

// NewAppWithConfig builds the App from an already-loaded configuration.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, sugar *zap.SugaredLogger) (*App, error) {
	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	iconCache, err := icons.NewCache(cfg.Icons.CacheSize, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize icon cache: %w", err)
	}

	app := &App{
		Config:         cfg,
		Logger:         logger,
		Sugar:          sugar,
		Group:          taskgroup.NewGroup(ctx, sugar),
		Store:          browser.NewStore(sugar),
		Lifecycle:      browser.NewLifecycle(),
		IconCache:      iconCache,
		AddonsProvider: addons.NewProvider(),
		httpClient:     NewHTTPClient(),
	}

	app.CrashReporter = crash.NewReporter(cfg.CrashReporter.Endpoint, string(cfg.ProcessRole), sugar)

	// Recovered task panics are crashes the process survived. They still get
	// reported.
	app.Group.OnPanic(func(name string, value any) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		app.CrashReporter.ReportPanic(ctx, fmt.Sprintf("task %s: %v", name, value))
	})

	app.engineFactory = func() engine.Engine {
		return engine.NewRemote(engine.RemoteOptions{
			Endpoint:       cfg.Engine.Endpoint,
			DialTimeout:    cfg.Engine.DialTimeout,
			CommandTimeout: cfg.Engine.CommandTimeout,
		}, sugar)
	}

	return app, nil
}

// Start runs the startup sequence. The background setup task (crash
// reporting, HTTP client binding, log sink wiring) is issued first and runs
// concurrently in every process role; everything after the process-role
// branch runs only in the main process, in issuance order: engine warm-up,
// then session restore, then feature initialization.
func (a *App) Start(ctx context.Context) error {
	a.Group.Go("background-setup", a.backgroundSetup)

	if !a.Config.IsMainProcess() {
		a.Sugar.Infow("Auxiliary process, skipping main-process initialization",
			"role", string(a.Config.ProcessRole))
		return nil
	}

	return a.startMain(ctx)
}

// backgroundSetup installs best-effort process-wide facilities. Failures here
// are logged and never abort startup.
func (a *App) backgroundSetup(ctx context.Context) error {
	if a.Config.CrashReporter.Enabled {
		if err := a.CrashReporter.Install(ctx); err != nil {
			a.Sugar.Errorw("Crash reporter install failed, continuing without it", "error", err)
		}
	}

	a.bindHTTPClient()

	// Route stdlib log output through the structured sink so dependencies
	// writing to log.Default land in the same stream.
	zap.RedirectStdLog(a.Logger)
	zap.ReplaceGlobals(a.Logger)
	log.SetFlags(0)

	return nil
}

// bindHTTPClient hands the shared HTTP client to the engine. Idempotent; a
// no-op until the engine exists (auxiliary processes never create one).
func (a *App) bindHTTPClient() {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.Engine != nil {
		a.Engine.BindHTTPClient(a.httpClient)
	}
}

// startMain is the main-process startup branch.
func (a *App) startMain(ctx context.Context) error {
	// Engine warm-up. The warm-up request is synchronous relative to Start;
	// the engine defers its own heavy lifting internally.
	metrics.StartupSteps.WithLabelValues("engine_warmup").Inc()
	eng := a.engineFactory()

	a.engineMu.Lock()
	a.Engine = eng
	eng.BindHTTPClient(a.httpClient)
	a.engineMu.Unlock()

	if err := eng.WarmUp(ctx); err != nil {
		return fmt.Errorf("engine warm-up failed: %w", err)
	}

	storage, err := session.NewStorage(a.Config.GetSessionDBPath(), a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	a.SessionStorage = storage

	a.UseCases = tabs.NewUseCases(a.Store, eng, a.Sugar)
	a.Serial = taskgroup.NewSerial(a.Group, a.Sugar)

	// Session restore runs on the serialized executor so it cannot race
	// other state-store consumers. Auto-save is configured with its three
	// OR'ed triggers once the restored state has been applied.
	metrics.StartupSteps.WithLabelValues("session_restore").Inc()
	a.AutoSave = session.NewAutoSave(
		a.Store, a.Lifecycle, storage,
		a.Config.Session.AutoSaveInterval, a.Config.Session.MaxSnapshots, a.Sugar).
		PeriodicallyInForeground().
		WhenGoingToBackground().
		WhenSessionsChange()

	a.Serial.Submit(func(ctx context.Context) {
		if err := a.UseCases.Restore(ctx, storage); err != nil {
			a.Sugar.Errorw("Session restore failed", "error", err)
		}
		// Auto-save starts even after a failed restore: the session that
		// accumulates from here on still has to be persisted.
		a.AutoSave.Start(a.Group)
	})

	metrics.StartupSteps.WithLabelValues("feature_init").Inc()
	if err := a.initFeatures(ctx); err != nil {
		return err
	}

	if a.Config.Diagnostics.Enabled {
		a.Diagnostics = api.NewServer(a.Config.Diagnostics.Addr, a.Store, storage, a.Sugar)
		a.Group.Go("diagnostics-server", a.runDiagnostics)
	}

	return nil
}

func (a *App) runDiagnostics(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Diagnostics.Start()
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.Diagnostics.Stop(stopCtx)
	case err := <-errCh:
		return err
	}
}

// OnTrimMemory responds to an OS memory-pressure signal: dispatch the
// low-memory action into the store and trim the icon cache. Main-process
// only; safe to call repeatedly and at arbitrary times.
func (a *App) OnTrimMemory(level int) {
	if !a.Config.IsMainProcess() {
		return
	}
	a.Store.Dispatch(browser.LowMemory{Level: level})
	a.IconCache.OnTrimMemory(level)
}

// OnLowMemory responds to the legacy low-memory callback by cancelling the
// whole application task scope. Coarse and irreversible: every in-flight
// background task, auto-save included, is abandoned.
func (a *App) OnLowMemory() {
	a.Sugar.Warn("Low-memory signal received, cancelling application task scope")
	a.Group.CancelAll()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Detach auto-save triggers
	if a.AutoSave != nil {
		a.AutoSave.Stop()
	}

	// Phase 2 - Close the push transport
	if a.PushFeature != nil {
		if err := a.PushFeature.Close(); err != nil {
			a.Sugar.Warnw("Failed to close push transport", "error", err)
		}
	}

	// Phase 3 - Cancel the task scope and wait for tasks to drain
	a.Group.CancelAll()
	done := make(chan struct{})
	go func() {
		a.Group.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All tasks stopped")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Task shutdown timed out")
	}

	// Phase 4 - Close the engine control channel
	a.engineMu.Lock()
	eng := a.Engine
	a.engineMu.Unlock()
	if eng != nil {
		if err := eng.Close(); err != nil {
			a.Sugar.Warnw("Failed to close engine", "error", err)
		}
	}

	// Phase 5 - Close session storage
	if a.SessionStorage != nil {
		if err := a.SessionStorage.Close(); err != nil {
			a.Sugar.Warnw("Failed to close session storage", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}
