package addons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"browserd/engine"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// maxCatalogSize bounds the update catalog response body.
const maxCatalogSize = 4 * 1024 * 1024

// maxManifestSize bounds a single manifest response body.
const maxManifestSize = 512 * 1024

// manifestSchema validates add-on manifests fetched during update checks.
const manifestSchema = `{
	"type": "object",
	"required": ["id", "name", "version"],
	"properties": {
		"id":      {"type": "string", "minLength": 1},
		"name":    {"type": "string", "minLength": 1},
		"version": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)*$"},
		"permissions": {"type": "array", "items": {"type": "string"}}
	}
}`

// catalogEntry is one add-on listing in the update catalog.
type catalogEntry struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	ManifestURL string `json:"manifest_url"`
}

// Update describes an available update for an installed extension.
type Update struct {
	Extension   engine.Extension
	NewVersion  string
	ManifestURL string
}

// Updater checks registered extensions against the update catalog and owns
// the update-permission policy.
type Updater struct {
	catalogURL string
	autoGrant  bool
	client     *retryablehttp.Client
	schema     *gojsonschema.Schema
	logger     *zap.SugaredLogger
}

// NewUpdater creates an updater against the given catalog URL.
func NewUpdater(catalogURL string, autoGrant bool, logger *zap.SugaredLogger) (*Updater, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("invalid manifest schema: %w", err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &Updater{
		catalogURL: catalogURL,
		autoGrant:  autoGrant,
		client:     client,
		schema:     schema,
		logger:     logger,
	}, nil
}

// CheckForUpdates fetches the catalog and returns the extensions in exts with
// a newer catalog version. An empty catalog URL disables checking.
func (u *Updater) CheckForUpdates(ctx context.Context, exts []engine.Extension) ([]Update, error) {
	if u.catalogURL == "" {
		return nil, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", u.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL %s: %w", u.catalogURL, err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog struct {
		Addons []catalogEntry `json:"addons"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("malformed catalog: %w", err)
	}

	byID := make(map[string]catalogEntry, len(catalog.Addons))
	for _, entry := range catalog.Addons {
		byID[entry.ID] = entry
	}

	var updates []Update
	for _, ext := range exts {
		entry, ok := byID[ext.ID]
		if !ok || !versionNewer(entry.Version, ext.Version) {
			continue
		}
		updates = append(updates, Update{
			Extension:   ext,
			NewVersion:  entry.Version,
			ManifestURL: entry.ManifestURL,
		})
	}

	u.logger.Infow("Update check completed", "checked", len(exts), "available", len(updates))
	return updates, nil
}

// FetchManifest retrieves the manifest document for an update candidate.
func (u *Updater) FetchManifest(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL %s: %w", url, err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("manifest fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return body, nil
}

// ValidateManifest checks an add-on manifest document against the manifest
// schema.
func (u *Updater) ValidateManifest(manifest []byte) error {
	result, err := u.schema.Validate(gojsonschema.NewBytesLoader(manifest))
	if err != nil {
		return fmt.Errorf("manifest validation failed: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid manifest: %s", errs[0])
		}
		return fmt.Errorf("invalid manifest")
	}
	return nil
}

// OnUpdatePermissionRequest decides whether an updated extension may use its
// requested permissions. With auto-grant off, unknown permission requests are
// denied; there is no prompt surface at this layer.
func (u *Updater) OnUpdatePermissionRequest(current, updated engine.Extension, decide func(granted bool)) {
	granted := u.autoGrant
	u.logger.Infow("Update permission request",
		"addon", current.ID,
		"from", current.Version,
		"to", updated.Version,
		"granted", granted)
	decide(granted)
}

// versionNewer reports whether a is a newer dotted version than b. Malformed
// components compare as zero.
func versionNewer(a, b string) bool {
	as := splitVersion(a)
	bs := splitVersion(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av > bv
		}
	}
	return false
}

func splitVersion(v string) []int {
	var parts []int
	n := 0
	seen := false
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
			n = n*10 + int(c-'0')
			seen = true
		case c == '.':
			parts = append(parts, n)
			n = 0
			seen = true
		default:
			return parts
		}
	}
	if seen {
		parts = append(parts, n)
	}
	return parts
}
