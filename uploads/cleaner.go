// Package uploads removes stale pending file-upload artifacts left behind by
// interrupted uploads.
package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"browserd/metrics"

	"go.uber.org/zap"
)

// Cleaner removes pending-upload artifacts older than MaxAge from Dir.
type Cleaner struct {
	Dir    string
	MaxAge time.Duration
	Logger *zap.SugaredLogger
}

// Clean walks the pending directory once, removing stale entries. A missing
// directory is a clean no-op. Individual removal failures are logged and do
// not stop the sweep.
func (c *Cleaner) Clean(ctx context.Context) error {
	entries, err := os.ReadDir(c.Dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read pending uploads directory %s: %w", c.Dir, err)
	}

	cutoff := time.Now().Add(-c.MaxAge)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(c.Dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			c.Logger.Warnw("Failed to remove stale upload artifact", "path", path, "error", err)
			continue
		}
		removed++
		metrics.UploadArtifactsCleaned.Inc()
	}

	if removed > 0 {
		c.Logger.Infow("Stale upload artifacts removed", "count", removed)
	}
	return nil
}
