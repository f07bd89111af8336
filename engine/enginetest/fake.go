// Package enginetest provides an in-process fake engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"browserd/engine"
)

// FakeSession records the navigation history of one fake session.
type FakeSession struct {
	id string

	mu     sync.Mutex
	urls   []string
	closed bool
}

func (s *FakeSession) ID() string { return s.id }

func (s *FakeSession) LoadURL(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.id)
	}
	s.urls = append(s.urls, url)
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// URLs returns every URL loaded into the session, in order.
func (s *FakeSession) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Fake implements engine.Engine entirely in process. Calls append their name
// to Calls; registered hooks can be fired from tests with the Fire helpers.
type Fake struct {
	// Extensions is returned by InstalledExtensions.
	Extensions []engine.Extension
	// WarmUpErr, if set, is returned by WarmUp.
	WarmUpErr error

	mu          sync.Mutex
	calls       []string
	sessions    []*FakeSession
	client      *http.Client
	nextSession int

	onNewTab        func(url string, session engine.Session) (string, error)
	onCloseTab      func(tabID string)
	onSelectTab     func(tabID string)
	onLoaded        func(extensions []engine.Extension)
	onUpdatePermReq func(current, updated engine.Extension, decide func(granted bool))
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{}
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Calls returns the engine methods invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Sessions returns every session created so far.
func (f *Fake) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

// Client returns the HTTP client bound with BindHTTPClient, if any.
func (f *Fake) Client() *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client
}

func (f *Fake) WarmUp(ctx context.Context) error {
	f.record("WarmUp")
	return f.WarmUpErr
}

func (f *Fake) NewSession(ctx context.Context, private bool) (engine.Session, error) {
	f.record("NewSession")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSession++
	s := &FakeSession{id: fmt.Sprintf("fake-session-%d", f.nextSession)}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *Fake) DeliverPushMessage(ctx context.Context, scope string, payload []byte) error {
	f.record("DeliverPushMessage")
	return nil
}

func (f *Fake) InstalledExtensions(ctx context.Context) ([]engine.Extension, error) {
	f.record("InstalledExtensions")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Extension(nil), f.Extensions...), nil
}

func (f *Fake) BindHTTPClient(client *http.Client) {
	f.record("BindHTTPClient")
	f.mu.Lock()
	f.client = client
	f.mu.Unlock()
}

func (f *Fake) Close() error {
	f.record("Close")
	return nil
}

func (f *Fake) OnNewTabRequest(fn func(url string, session engine.Session) (string, error)) {
	f.mu.Lock()
	f.onNewTab = fn
	f.mu.Unlock()
}

func (f *Fake) OnCloseTabRequest(fn func(tabID string)) {
	f.mu.Lock()
	f.onCloseTab = fn
	f.mu.Unlock()
}

func (f *Fake) OnSelectTabRequest(fn func(tabID string)) {
	f.mu.Lock()
	f.onSelectTab = fn
	f.mu.Unlock()
}

func (f *Fake) OnExtensionsLoaded(fn func(extensions []engine.Extension)) {
	f.mu.Lock()
	f.onLoaded = fn
	f.mu.Unlock()
}

func (f *Fake) OnUpdatePermissionRequest(fn func(current, updated engine.Extension, decide func(granted bool))) {
	f.mu.Lock()
	f.onUpdatePermReq = fn
	f.mu.Unlock()
}

// FireNewTab invokes the registered new-tab hook with a fresh fake session.
func (f *Fake) FireNewTab(url string) (string, error) {
	f.mu.Lock()
	fn := f.onNewTab
	f.mu.Unlock()
	if fn == nil {
		return "", fmt.Errorf("no new-tab hook registered")
	}
	s, _ := f.NewSession(context.Background(), false)
	return fn(url, s)
}

// FireCloseTab invokes the registered close-tab hook.
func (f *Fake) FireCloseTab(tabID string) {
	f.mu.Lock()
	fn := f.onCloseTab
	f.mu.Unlock()
	if fn != nil {
		fn(tabID)
	}
}

// FireSelectTab invokes the registered select-tab hook.
func (f *Fake) FireSelectTab(tabID string) {
	f.mu.Lock()
	fn := f.onSelectTab
	f.mu.Unlock()
	if fn != nil {
		fn(tabID)
	}
}

// FireExtensionsLoaded invokes the registered extensions-loaded hook.
func (f *Fake) FireExtensionsLoaded(exts []engine.Extension) {
	f.mu.Lock()
	fn := f.onLoaded
	f.mu.Unlock()
	if fn != nil {
		fn(exts)
	}
}

// FireUpdatePermission invokes the permission hook and returns the decision.
func (f *Fake) FireUpdatePermission(current, updated engine.Extension) (bool, error) {
	f.mu.Lock()
	fn := f.onUpdatePermReq
	f.mu.Unlock()
	if fn == nil {
		return false, fmt.Errorf("no update-permission hook registered")
	}
	granted := make(chan bool, 1)
	fn(current, updated, func(g bool) { granted <- g })
	select {
	case g := <-granted:
		return g, nil
	default:
		return false, fmt.Errorf("permission hook did not decide")
	}
}
