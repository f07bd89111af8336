package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"browserd/browser"
	"browserd/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *browser.Store, *session.Storage) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store := browser.NewStore(logger)
	storage, err := session.NewStorage(filepath.Join(t.TempDir(), "sessions.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return NewServer("127.0.0.1:0", store, storage, logger), store, storage
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDebugSession(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.Dispatch(browser.TabAdded{Tab: browser.Tab{ID: "a", URL: "https://example.com"}, Select: true})

	rec := get(t, s, "/debug/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tabs          []browser.Tab `json:"tabs"`
		SelectedTabID string        `json:"selected_tab_id"`
		Restored      bool          `json:"restored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tabs, 1)
	assert.Equal(t, "a", body.SelectedTabID)
	assert.False(t, body.Restored)
}

func TestDebugSnapshots(t *testing.T) {
	s, _, storage := newTestServer(t)

	snap := session.SnapshotFromState(browser.State{
		Tabs:          []browser.Tab{{ID: "a"}},
		SelectedTabID: "a",
	})
	require.NoError(t, storage.Save(context.Background(), snap))

	rec := get(t, s, "/debug/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []session.SnapshotInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Greater(t, infos[0].Bytes, 0)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
