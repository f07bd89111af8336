package browser

import "sync"

// Lifecycle tracks whether the application is foregrounded and notifies
// observers on transitions. It exists so auto-save can key its interval
// trigger to foreground time and fire once on each move to background.
type Lifecycle struct {
	mu         sync.Mutex
	foreground bool
	observers  []func(foreground bool)
}

// NewLifecycle starts foregrounded.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{foreground: true}
}

// Foreground reports the current state.
func (l *Lifecycle) Foreground() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.foreground
}

// OnTransition registers fn to run on every foreground/background flip.
func (l *Lifecycle) OnTransition(fn func(foreground bool)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// EnterForeground flips to foreground. Repeated calls are no-ops.
func (l *Lifecycle) EnterForeground() { l.set(true) }

// EnterBackground flips to background. Repeated calls are no-ops.
func (l *Lifecycle) EnterBackground() { l.set(false) }

func (l *Lifecycle) set(foreground bool) {
	l.mu.Lock()
	if l.foreground == foreground {
		l.mu.Unlock()
		return
	}
	l.foreground = foreground
	observers := make([]func(bool), len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(foreground)
	}
}
