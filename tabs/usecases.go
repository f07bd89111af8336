// Package tabs exposes the tab-management use-cases: domain actions over the
// state store and engine, independent of any UI.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"browserd/browser"
	"browserd/engine"
	"browserd/metrics"
	"browserd/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UseCases bundles tab add/remove/select/restore. It mutates browser state
// only by dispatching store actions and keeps the tab-to-engine-session
// mapping that the store deliberately does not hold.
type UseCases struct {
	store  *browser.Store
	eng    engine.Engine
	logger *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]engine.Session // tab ID -> engine session
}

// NewUseCases creates the bundle.
func NewUseCases(store *browser.Store, eng engine.Engine, logger *zap.SugaredLogger) *UseCases {
	return &UseCases{
		store:    store,
		eng:      eng,
		logger:   logger,
		sessions: make(map[string]engine.Session),
	}
}

// AddTab opens a new tab for url and returns its identifier. When es is nil a
// fresh engine session is created; callers that already hold a session (the
// web-extension new-tab path) pass it through.
func (u *UseCases) AddTab(ctx context.Context, url string, selectTab bool, es engine.Session) (string, error) {
	if es == nil {
		created, err := u.eng.NewSession(ctx, false)
		if err != nil {
			return "", fmt.Errorf("failed to create engine session: %w", err)
		}
		es = created
	}

	if err := es.LoadURL(ctx, url); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}

	tab := browser.Tab{
		ID:       uuid.New().String(),
		URL:      url,
		LastUsed: time.Now().UnixMilli(),
	}

	u.mu.Lock()
	u.sessions[tab.ID] = es
	u.mu.Unlock()

	u.store.Dispatch(browser.TabAdded{Tab: tab, Select: selectTab})
	metrics.TabOperations.WithLabelValues("add").Inc()
	return tab.ID, nil
}

// RemoveTab removes the tab and closes its engine session.
func (u *UseCases) RemoveTab(ctx context.Context, tabID string) error {
	if u.store.State().FindTab(tabID) == nil {
		return fmt.Errorf("unknown tab %s", tabID)
	}

	u.mu.Lock()
	es := u.sessions[tabID]
	delete(u.sessions, tabID)
	u.mu.Unlock()

	u.store.Dispatch(browser.TabRemoved{ID: tabID})
	metrics.TabOperations.WithLabelValues("remove").Inc()

	if es != nil {
		if err := es.Close(); err != nil {
			u.logger.Warnw("Failed to close engine session", "tab", tabID, "error", err)
		}
	}
	return nil
}

// SelectTab makes the tab active.
func (u *UseCases) SelectTab(ctx context.Context, tabID string) error {
	if u.store.State().FindTab(tabID) == nil {
		return fmt.Errorf("unknown tab %s", tabID)
	}
	u.store.Dispatch(browser.TabSelected{ID: tabID})
	metrics.TabOperations.WithLabelValues("select").Inc()
	return nil
}

// Restore loads the latest stored snapshot and applies it to the store. A
// missing snapshot is a valid first run, not an error. Engine sessions for
// restored tabs are created lazily on first use, not here.
func (u *UseCases) Restore(ctx context.Context, storage *session.Storage) error {
	snap, err := storage.LoadLatest(ctx)
	if errors.Is(err, session.ErrNoSnapshot) {
		u.logger.Info("No stored session, starting fresh")
		u.store.Dispatch(browser.TabsRestored{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	u.store.Dispatch(browser.TabsRestored{
		Tabs:          snap.Tabs,
		SelectedTabID: snap.SelectedTabID,
	})
	metrics.SessionRestores.Inc()
	u.logger.Infow("Session restored", "tabs", len(snap.Tabs), "saved_at", snap.SavedAt)
	return nil
}

// SessionFor returns the engine session bound to a tab, or nil.
func (u *UseCases) SessionFor(tabID string) engine.Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sessions[tabID]
}
