package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"browserd/util/taskgroup"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Control channel constants
const (
	// writeWait is the time allowed to write a frame to the engine.
	writeWait = 10 * time.Second

	// defaultDialTimeout bounds the control-channel dial during warm-up.
	defaultDialTimeout = 10 * time.Second

	// defaultCommandTimeout bounds a single command round-trip.
	defaultCommandTimeout = 30 * time.Second
)

// frame is one control-channel message. Commands carry ID+Method, responses
// carry ID+Result/Error, engine-originated events carry Event.
type frame struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// Remote is the production Engine implementation. It speaks a JSON
// command/response protocol to the engine process over a websocket control
// channel; engine-originated extension events arrive on the same connection.
type Remote struct {
	endpoint       string
	dialTimeout    time.Duration
	commandTimeout time.Duration
	logger         *zap.SugaredLogger

	httpMu     sync.Mutex
	httpClient *http.Client

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu sync.Mutex

	nextID  atomic.Uint64
	pending sync.Map // uint64 -> chan frame

	hookMu          sync.Mutex
	onNewTab        func(url string, session Session) (string, error)
	onCloseTab      func(tabID string)
	onSelectTab     func(tabID string)
	onExtsLoaded    func(extensions []Extension)
	onUpdatePermReq func(current, updated Extension, decide func(bool))
}

// RemoteOptions configures the control-channel client.
type RemoteOptions struct {
	Endpoint       string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// NewRemote creates an engine client for the given control endpoint. No
// connection is made until WarmUp.
func NewRemote(opts RemoteOptions, logger *zap.SugaredLogger) *Remote {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	return &Remote{
		endpoint:       opts.Endpoint,
		dialTimeout:    opts.DialTimeout,
		commandTimeout: opts.CommandTimeout,
		logger:         logger,
	}
}

// BindHTTPClient hands the engine the shared HTTP client. Must be bound
// before any HTTP-side resource fetch; the control channel does not use it.
func (r *Remote) BindHTTPClient(client *http.Client) {
	r.httpMu.Lock()
	r.httpClient = client
	r.httpMu.Unlock()
}

// WarmUp dials the control channel and starts the event reader. The engine
// process may still be initializing internally when WarmUp returns.
func (r *Remote) WarmUp(ctx context.Context) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, r.dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, r.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial engine control channel %s: %w", r.endpoint, err)
	}
	r.conn = conn

	go r.readLoop(conn)

	r.logger.Infow("Engine warm-up issued", "endpoint", r.endpoint)
	return nil
}

// Close tears down the control connection.
func (r *Remote) Close() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// NewSession creates a fresh engine session.
func (r *Remote) NewSession(ctx context.Context, private bool) (Session, error) {
	result, err := r.call(ctx, "session.create", map[string]any{"private": private})
	if err != nil {
		return nil, err
	}
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("malformed session.create result: %w", err)
	}
	return &remoteSession{id: payload.SessionID, engine: r}, nil
}

// DeliverPushMessage forwards a decrypted push payload to the engine.
func (r *Remote) DeliverPushMessage(ctx context.Context, scope string, payload []byte) error {
	_, err := r.call(ctx, "push.deliver", map[string]any{
		"scope":   scope,
		"payload": payload,
	})
	return err
}

// InstalledExtensions lists the engine's installed web extensions.
func (r *Remote) InstalledExtensions(ctx context.Context) ([]Extension, error) {
	result, err := r.call(ctx, "extensions.list", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Extensions []Extension `json:"extensions"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("malformed extensions.list result: %w", err)
	}
	return payload.Extensions, nil
}

// OnNewTabRequest registers the new-tab hook.
func (r *Remote) OnNewTabRequest(fn func(url string, session Session) (string, error)) {
	r.hookMu.Lock()
	r.onNewTab = fn
	r.hookMu.Unlock()
}

// OnCloseTabRequest registers the close-tab hook.
func (r *Remote) OnCloseTabRequest(fn func(tabID string)) {
	r.hookMu.Lock()
	r.onCloseTab = fn
	r.hookMu.Unlock()
}

// OnSelectTabRequest registers the select-tab hook.
func (r *Remote) OnSelectTabRequest(fn func(tabID string)) {
	r.hookMu.Lock()
	r.onSelectTab = fn
	r.hookMu.Unlock()
}

// OnExtensionsLoaded registers the extensions-loaded hook.
func (r *Remote) OnExtensionsLoaded(fn func(extensions []Extension)) {
	r.hookMu.Lock()
	r.onExtsLoaded = fn
	r.hookMu.Unlock()
}

// OnUpdatePermissionRequest registers the update-permission hook.
func (r *Remote) OnUpdatePermissionRequest(fn func(current, updated Extension, decide func(bool))) {
	r.hookMu.Lock()
	r.onUpdatePermReq = fn
	r.hookMu.Unlock()
}

// call sends one command frame and waits for its response.
func (r *Remote) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	r.connMu.Lock()
	conn := r.conn
	r.connMu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("engine not warmed up: control channel not connected")
	}

	id := r.nextID.Add(1)
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		raw = data
	}

	ch := make(chan frame, 1)
	r.pending.Store(id, ch)
	defer r.pending.Delete(id)

	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(frame{ID: id, Method: method, Params: raw})
	r.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	timeout := time.NewTimer(r.commandTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, fmt.Errorf("%s timed out after %s", method, r.commandTimeout)
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("engine rejected %s: %s", method, resp.Error)
		}
		return resp.Result, nil
	}
}

// readLoop dispatches inbound frames: responses to their pending callers,
// events to the registered hooks. Runs until the connection drops.
func (r *Remote) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Warnw("Engine control channel dropped", "error", err)
			}
			return
		}

		// Events run on their own goroutine: hooks issue commands on this
		// same connection and wait for responses only this loop can read.
		if f.Event != "" {
			go r.dispatchEvent(conn, f)
			continue
		}

		if ch, ok := r.pending.Load(f.ID); ok {
			ch.(chan frame) <- f
		}
	}
}

// dispatchEvent runs one engine-originated event through the registered
// hooks. It runs off the read loop; a hook panic must not take the process
// down with it.
func (r *Remote) dispatchEvent(conn *websocket.Conn, f frame) {
	defer taskgroup.Recover("engine-event", r.logger)

	r.hookMu.Lock()
	onNewTab := r.onNewTab
	onCloseTab := r.onCloseTab
	onSelectTab := r.onSelectTab
	onExtsLoaded := r.onExtsLoaded
	onUpdatePermReq := r.onUpdatePermReq
	r.hookMu.Unlock()

	switch f.Event {
	case "extension.newTab":
		var params struct {
			URL       string `json:"url"`
			SessionID string `json:"session_id"`
			RequestID uint64 `json:"request_id"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil || onNewTab == nil {
			return
		}
		tabID, err := onNewTab(params.URL, &remoteSession{id: params.SessionID, engine: r})
		reply := map[string]any{"request_id": params.RequestID, "tab_id": tabID}
		if err != nil {
			reply["error"] = err.Error()
		}
		r.reply(conn, "extension.newTab.result", reply)

	case "extension.closeTab":
		var params struct {
			TabID string `json:"tab_id"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil || onCloseTab == nil {
			return
		}
		onCloseTab(params.TabID)

	case "extension.selectTab":
		var params struct {
			TabID string `json:"tab_id"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil || onSelectTab == nil {
			return
		}
		onSelectTab(params.TabID)

	case "extension.loaded":
		var params struct {
			Extensions []Extension `json:"extensions"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil || onExtsLoaded == nil {
			return
		}
		onExtsLoaded(params.Extensions)

	case "extension.updatePermission":
		var params struct {
			Current   Extension `json:"current"`
			Updated   Extension `json:"updated"`
			RequestID uint64    `json:"request_id"`
		}
		if err := json.Unmarshal(f.Params, &params); err != nil || onUpdatePermReq == nil {
			return
		}
		onUpdatePermReq(params.Current, params.Updated, func(granted bool) {
			r.reply(conn, "extension.updatePermission.result", map[string]any{
				"request_id": params.RequestID,
				"granted":    granted,
			})
		})

	default:
		r.logger.Debugw("Unhandled engine event", "event", f.Event)
	}
}

func (r *Remote) reply(conn *websocket.Conn, event string, params map[string]any) {
	data, err := json.Marshal(params)
	if err != nil {
		return
	}
	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame{Event: event, Params: data}); err != nil {
		r.logger.Warnw("Failed to reply to engine event", "event", event, "error", err)
	}
	r.writeMu.Unlock()
}

// remoteSession is a Session handle backed by the control channel.
type remoteSession struct {
	id     string
	engine *Remote
}

func (s *remoteSession) ID() string { return s.id }

func (s *remoteSession) LoadURL(ctx context.Context, url string) error {
	_, err := s.engine.call(ctx, "session.navigate", map[string]any{
		"session_id": s.id,
		"url":        url,
	})
	return err
}

func (s *remoteSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.engine.call(ctx, "session.close", map[string]any{"session_id": s.id})
	return err
}
