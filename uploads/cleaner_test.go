package uploads

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanRemovesOnlyStaleArtifacts(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "upload-123.part")
	fresh := filepath.Join(dir, "upload-456.part")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	c := &Cleaner{Dir: dir, MaxAge: 24 * time.Hour, Logger: zap.NewNop().Sugar()}
	require.NoError(t, c.Clean(context.Background()))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale artifact must be removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh artifact must survive")
}

func TestCleanRemovesStaleDirectories(t *testing.T) {
	dir := t.TempDir()

	staleDir := filepath.Join(dir, "upload-bundle")
	require.NoError(t, os.MkdirAll(staleDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "part0"), []byte("x"), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, old, old))

	c := &Cleaner{Dir: dir, MaxAge: 24 * time.Hour, Logger: zap.NewNop().Sugar()}
	require.NoError(t, c.Clean(context.Background()))

	_, err := os.Stat(staleDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanMissingDirectoryIsNoOp(t *testing.T) {
	c := &Cleaner{
		Dir:    filepath.Join(t.TempDir(), "does-not-exist"),
		MaxAge: time.Hour,
		Logger: zap.NewNop().Sugar(),
	}
	assert.NoError(t, c.Clean(context.Background()))
}

func TestCleanHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.part"), []byte("x"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Cleaner{Dir: dir, MaxAge: 0, Logger: zap.NewNop().Sugar()}
	assert.Error(t, c.Clean(ctx))
}
