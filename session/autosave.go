package session

import (
	"context"
	"sync"
	"time"

	"browserd/browser"
	"browserd/metrics"
	"browserd/util/taskgroup"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Trigger names, also used as the metrics label.
const (
	TriggerPeriodic   = "periodic"
	TriggerBackground = "background"
	TriggerChange     = "change"
)

// DefaultInterval is the periodic save cadence while foregrounded.
const DefaultInterval = 30 * time.Second

// AutoSave persists the current session on a set of OR'ed triggers. Triggers
// are opted into with the chained configuration calls, then Start schedules
// the job on the application scope. Any one trigger fires a save;
// at-least-once semantics, last-write-wins on the stored snapshot.
type AutoSave struct {
	store     *browser.Store
	lifecycle *browser.Lifecycle
	storage   *Storage
	interval  time.Duration
	keep      int
	logger    *zap.SugaredLogger

	// limiter coalesces bursts of session-change saves. A disallowed save
	// marks the job dirty; the housekeeping tick catches up, so no final
	// state is ever lost.
	limiter *rate.Limiter

	mu       sync.Mutex
	triggers map[string]bool
	dirty    bool
	started  bool

	saveCh chan string
	unsubs []func()
}

// NewAutoSave creates an unconfigured job. At least one trigger must be
// enabled before Start.
func NewAutoSave(store *browser.Store, lifecycle *browser.Lifecycle, storage *Storage, interval time.Duration, keep int, logger *zap.SugaredLogger) *AutoSave {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &AutoSave{
		store:     store,
		lifecycle: lifecycle,
		storage:   storage,
		interval:  interval,
		keep:      keep,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		triggers:  make(map[string]bool),
		saveCh:    make(chan string, 8),
	}
}

// PeriodicallyInForeground enables the fixed-interval trigger. It only fires
// while the app is foregrounded.
func (a *AutoSave) PeriodicallyInForeground() *AutoSave {
	a.mu.Lock()
	a.triggers[TriggerPeriodic] = true
	a.mu.Unlock()
	return a
}

// WhenGoingToBackground enables a save on each foreground-to-background
// transition.
func (a *AutoSave) WhenGoingToBackground() *AutoSave {
	a.mu.Lock()
	a.triggers[TriggerBackground] = true
	a.mu.Unlock()
	return a
}

// WhenSessionsChange enables a save whenever the session set changes.
func (a *AutoSave) WhenSessionsChange() *AutoSave {
	a.mu.Lock()
	a.triggers[TriggerChange] = true
	a.mu.Unlock()
	return a
}

// ActiveTriggers returns the enabled trigger names.
func (a *AutoSave) ActiveTriggers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.triggers))
	for name := range a.triggers {
		names = append(names, name)
	}
	return names
}

// Start wires the enabled triggers and schedules the save worker on g.
// Calling Start twice is a no-op.
func (a *AutoSave) Start(g *taskgroup.Group) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	triggers := make(map[string]bool, len(a.triggers))
	for k, v := range a.triggers {
		triggers[k] = v
	}
	a.mu.Unlock()

	if triggers[TriggerBackground] {
		a.lifecycle.OnTransition(func(foreground bool) {
			if !foreground {
				a.request(TriggerBackground)
			}
		})
	}

	if triggers[TriggerChange] {
		unsub := a.store.Subscribe(func(browser.State) {
			a.request(TriggerChange)
		})
		a.mu.Lock()
		a.unsubs = append(a.unsubs, unsub)
		a.mu.Unlock()
	}

	g.Go("session-autosave", func(ctx context.Context) error {
		return a.run(ctx, triggers[TriggerPeriodic], triggers[TriggerChange])
	})
}

// Stop detaches the session-change subscription. The worker itself stops
// with the owning scope.
func (a *AutoSave) Stop() {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// request records a save request from a trigger. Change-trigger bursts are
// throttled through the limiter and caught up by housekeeping.
func (a *AutoSave) request(trigger string) {
	if trigger == TriggerChange && !a.limiter.Allow() {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		return
	}
	select {
	case a.saveCh <- trigger:
	default:
		// A save is already queued; the pending one will capture this state.
	}
}

func (a *AutoSave) run(ctx context.Context, periodic, change bool) error {
	var tickC <-chan time.Time
	if periodic {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	// Housekeeping only exists to catch up throttled change saves; without
	// the change trigger nothing can become dirty, so the worker stays idle
	// between saves.
	var houseC <-chan time.Time
	if change {
		housekeeping := time.NewTicker(time.Second)
		defer housekeeping.Stop()
		houseC = housekeeping.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tickC:
			if a.lifecycle.Foreground() {
				a.save(ctx, TriggerPeriodic)
			}

		case trigger := <-a.saveCh:
			a.save(ctx, trigger)

		case <-houseC:
			a.mu.Lock()
			dirty := a.dirty
			a.mu.Unlock()
			if dirty && a.limiter.Allow() {
				a.save(ctx, TriggerChange)
			}
		}
	}
}

// save persists the current state. Errors are logged; the next trigger tries
// again.
func (a *AutoSave) save(ctx context.Context, trigger string) {
	a.mu.Lock()
	a.dirty = false
	a.mu.Unlock()

	snap := SnapshotFromState(a.store.State())
	if err := a.storage.Save(ctx, snap); err != nil {
		a.logger.Errorw("Session auto-save failed", "trigger", trigger, "error", err)
		return
	}
	metrics.SessionSaves.WithLabelValues(trigger).Inc()

	if a.keep > 0 {
		if _, err := a.storage.Prune(ctx, a.keep); err != nil {
			a.logger.Warnw("Snapshot prune failed", "error", err)
		}
	}
}
