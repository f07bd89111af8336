package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"browserd/config"

	"go.uber.org/zap"
)

// EnsureDataDirectories creates required data directories with proper
// permissions. This is a pre-flight check that runs before any service
// initialization.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	directoriesToCreate := []string{
		cfg.GetDataDir(),
		cfg.GetUploadsDir(),
		cfg.DataPaths.IconsDir,
		filepath.Dir(cfg.GetSessionDBPath()),
	}

	for _, dir := range directoriesToCreate {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable", dir, err)
		}

		// Verify write permissions
		testFile := filepath.Join(absPath, ".browserd_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions", dir, err)
		}
		os.Remove(testFile)

		sugar.Infow("Data directory ready", "path", absPath)
	}

	sugar.Info("All data directories verified")
	return nil
}
