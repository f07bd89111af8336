package addons

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"browserd/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckForUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"addons": [
				{"id": "tracker-blocker", "version": "2.1.0", "manifest_url": "https://cdn.example/tb.json"},
				{"id": "dark-mode", "version": "1.0.0", "manifest_url": "https://cdn.example/dm.json"}
			]
		}`))
	}))
	defer srv.Close()

	u, err := NewUpdater(srv.URL, false, zap.NewNop().Sugar())
	require.NoError(t, err)

	updates, err := u.CheckForUpdates(context.Background(), []engine.Extension{
		{ID: "tracker-blocker", Version: "2.0.5"},
		{ID: "dark-mode", Version: "1.0.0"},
		{ID: "unlisted", Version: "0.1"},
	})
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, "tracker-blocker", updates[0].Extension.ID)
	assert.Equal(t, "2.1.0", updates[0].NewVersion)
	assert.Equal(t, "https://cdn.example/tb.json", updates[0].ManifestURL)
}

func TestFetchManifest(t *testing.T) {
	manifest := `{"id": "tb", "name": "Tracker Blocker", "version": "2.1.0"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tb.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(manifest))
	}))
	defer srv.Close()

	u, err := NewUpdater("", false, zap.NewNop().Sugar())
	require.NoError(t, err)

	body, err := u.FetchManifest(context.Background(), srv.URL+"/tb.json")
	require.NoError(t, err)
	assert.Equal(t, manifest, string(body))
	assert.NoError(t, u.ValidateManifest(body))

	_, err = u.FetchManifest(context.Background(), srv.URL+"/missing.json")
	assert.Error(t, err)
}

func TestCheckForUpdatesWithoutCatalogURL(t *testing.T) {
	u, err := NewUpdater("", false, zap.NewNop().Sugar())
	require.NoError(t, err)

	updates, err := u.CheckForUpdates(context.Background(), []engine.Extension{{ID: "x", Version: "1.0"}})
	require.NoError(t, err)
	assert.Nil(t, updates)
}

func TestCheckForUpdatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	u, err := NewUpdater(srv.URL, false, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = u.CheckForUpdates(context.Background(), nil)
	assert.Error(t, err)
}

func TestValidateManifest(t *testing.T) {
	u, err := NewUpdater("", false, zap.NewNop().Sugar())
	require.NoError(t, err)

	valid := []byte(`{"id": "tb", "name": "Tracker Blocker", "version": "2.1.0", "permissions": ["tabs"]}`)
	assert.NoError(t, u.ValidateManifest(valid))

	missingVersion := []byte(`{"id": "tb", "name": "Tracker Blocker"}`)
	assert.Error(t, u.ValidateManifest(missingVersion))

	badVersion := []byte(`{"id": "tb", "name": "Tracker Blocker", "version": "two"}`)
	assert.Error(t, u.ValidateManifest(badVersion))
}

func TestVersionNewer(t *testing.T) {
	assert.True(t, versionNewer("2.0", "1.9"))
	assert.True(t, versionNewer("1.0.1", "1.0"))
	assert.True(t, versionNewer("1.10", "1.9"))
	assert.False(t, versionNewer("1.0", "1.0"))
	assert.False(t, versionNewer("1.0", "1.0.1"))
	assert.False(t, versionNewer("garbage", "1.0"))
}

func TestAutoGrantPolicy(t *testing.T) {
	grant, err := NewUpdater("", true, zap.NewNop().Sugar())
	require.NoError(t, err)
	deny, err := NewUpdater("", false, zap.NewNop().Sugar())
	require.NoError(t, err)

	cur := engine.Extension{ID: "x", Version: "1.0"}
	upd := engine.Extension{ID: "x", Version: "2.0"}

	var decision bool
	grant.OnUpdatePermissionRequest(cur, upd, func(g bool) { decision = g })
	assert.True(t, decision)

	deny.OnUpdatePermissionRequest(cur, upd, func(g bool) { decision = g })
	assert.False(t, decision)
}
