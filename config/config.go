// Package config holds all configuration for the browserd runtime.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ProcessRole identifies which kind of OS process this instance runs as.
// Only the main process constructs the engine and restores sessions;
// auxiliary processes (renderer, crashhelper) never do.
type ProcessRole string

const (
	RoleMain        ProcessRole = "main"
	RoleRenderer    ProcessRole = "renderer"
	RoleCrashHelper ProcessRole = "crashhelper"
)

// DataPaths holds all data directory and file path configuration.
// These paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (BROWSERD_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SessionDBPath is the session snapshot database path (BROWSERD_SESSION_DB, default: ${DataDir}/sessions.db)
	SessionDBPath string `mapstructure:"session_db_path"`
	// UploadsDir is the pending-upload staging directory (BROWSERD_UPLOADS_DIR, default: ${DataDir}/uploads)
	UploadsDir string `mapstructure:"uploads_dir"`
	// IconsDir is the icon disk spill directory (BROWSERD_ICONS_DIR, default: ${DataDir}/icons)
	IconsDir string `mapstructure:"icons_dir"`
}

// Config holds all configuration for the browserd runtime.
type Config struct {
	// ProcessRole selects main vs auxiliary behavior at startup.
	ProcessRole ProcessRole `mapstructure:"process_role"`

	DataPaths DataPaths `mapstructure:"data_paths"`

	Engine struct {
		// Endpoint is the websocket control endpoint of the rendering engine
		// process, e.g. ws://127.0.0.1:9222/control.
		Endpoint       string        `mapstructure:"endpoint" validate:"required"`
		DialTimeout    time.Duration `mapstructure:"dial_timeout"`
		CommandTimeout time.Duration `mapstructure:"command_timeout"`
	} `mapstructure:"engine"`

	Session struct {
		// AutoSaveInterval is the periodic save cadence while foregrounded.
		AutoSaveInterval time.Duration `mapstructure:"autosave_interval" validate:"gt=0"`
		// MaxSnapshots bounds how many historical snapshots are kept.
		MaxSnapshots int `mapstructure:"max_snapshots" validate:"gte=1"`
	} `mapstructure:"session"`

	Push struct {
		// Enabled gates the whole push feature. Disabled is a valid, silent state.
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
		Channel string `mapstructure:"channel"`
		// AuthPublicKey is the PEM-encoded ECDSA key used to verify message JWTs.
		AuthPublicKey string `mapstructure:"auth_public_key"`
		// SubscriptionKey is the base64url private scalar for payload decryption.
		SubscriptionKey string `mapstructure:"subscription_key"`
		// AuthSecret is the base64url 16-byte subscription auth secret.
		AuthSecret string `mapstructure:"auth_secret"`
	} `mapstructure:"push"`

	CrashReporter struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"crash_reporter"`

	Addons struct {
		// CatalogURL is the update catalog the updater checks against.
		CatalogURL string `mapstructure:"catalog_url"`
		// UpdateCheckInterval paces both the catalog update check and the
		// unsupported-add-on check while its subscription is registered.
		UpdateCheckInterval time.Duration `mapstructure:"update_check_interval" validate:"gt=0"`
		// AutoGrantPermissions makes the updater approve update permission
		// requests without prompting.
		AutoGrantPermissions bool `mapstructure:"auto_grant_permissions"`
	} `mapstructure:"addons"`

	Icons struct {
		CacheSize int `mapstructure:"cache_size" validate:"gte=1"`
	} `mapstructure:"icons"`

	Uploads struct {
		// MaxAge is how old a pending artifact must be before cleanup removes it.
		MaxAge time.Duration `mapstructure:"max_age" validate:"gt=0"`
	} `mapstructure:"uploads"`

	Diagnostics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"diagnostics"`
}

// LoadConfig reads config.yaml (if present), applies env overrides and
// validates the result.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	config.ResolveDataPaths()

	return &config, nil
}

// Validate checks structural constraints and cross-field requirements.
func Validate(c *Config) error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.ProcessRole {
	case RoleMain, RoleRenderer, RoleCrashHelper:
	default:
		return fmt.Errorf("invalid configuration: unknown process_role %q", c.ProcessRole)
	}

	if c.Push.Enabled {
		if c.Push.Addr == "" || c.Push.Channel == "" {
			return fmt.Errorf("invalid configuration: push.addr and push.channel are required when push is enabled")
		}
	}
	if c.CrashReporter.Enabled && c.CrashReporter.Endpoint == "" {
		return fmt.Errorf("invalid configuration: crash_reporter.endpoint is required when the crash reporter is enabled")
	}
	if c.Diagnostics.Enabled && c.Diagnostics.Addr == "" {
		return fmt.Errorf("invalid configuration: diagnostics.addr is required when diagnostics are enabled")
	}
	return nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir when not
// explicitly set.
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SessionDBPath == "" {
		c.DataPaths.SessionDBPath = filepath.Join(dataDir, "sessions.db")
	} else if !filepath.IsAbs(c.DataPaths.SessionDBPath) {
		c.DataPaths.SessionDBPath = filepath.Clean(c.DataPaths.SessionDBPath)
	}

	if c.DataPaths.UploadsDir == "" {
		c.DataPaths.UploadsDir = filepath.Join(dataDir, "uploads")
	} else if !filepath.IsAbs(c.DataPaths.UploadsDir) {
		c.DataPaths.UploadsDir = filepath.Clean(c.DataPaths.UploadsDir)
	}

	if c.DataPaths.IconsDir == "" {
		c.DataPaths.IconsDir = filepath.Join(dataDir, "icons")
	} else if !filepath.IsAbs(c.DataPaths.IconsDir) {
		c.DataPaths.IconsDir = filepath.Clean(c.DataPaths.IconsDir)
	}

	c.DataPaths.DataDir = dataDir
}

// IsMainProcess reports whether this instance is the designated main process.
func (c *Config) IsMainProcess() bool {
	return c.ProcessRole == RoleMain
}

// GetDataDir returns the resolved base data directory.
func (c *Config) GetDataDir() string { return c.DataPaths.DataDir }

// GetSessionDBPath returns the resolved session database path.
func (c *Config) GetSessionDBPath() string { return c.DataPaths.SessionDBPath }

// GetUploadsDir returns the resolved pending-uploads directory.
func (c *Config) GetUploadsDir() string { return c.DataPaths.UploadsDir }

func setDefaults() {
	viper.SetDefault("process_role", string(RoleMain))

	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.session_db_path", "") // Empty = derive from data_dir
	viper.SetDefault("data_paths.uploads_dir", "")     // Empty = derive from data_dir
	viper.SetDefault("data_paths.icons_dir", "")       // Empty = derive from data_dir

	viper.SetDefault("engine.endpoint", "ws://127.0.0.1:9222/control")
	viper.SetDefault("engine.dial_timeout", 10*time.Second)
	viper.SetDefault("engine.command_timeout", 30*time.Second)

	viper.SetDefault("session.autosave_interval", 30*time.Second)
	viper.SetDefault("session.max_snapshots", 10)

	viper.SetDefault("push.enabled", false)
	viper.SetDefault("push.addr", "127.0.0.1:6379")
	viper.SetDefault("push.channel", "browserd:push")

	viper.SetDefault("crash_reporter.enabled", false)
	viper.SetDefault("crash_reporter.endpoint", "")

	viper.SetDefault("addons.catalog_url", "")
	viper.SetDefault("addons.update_check_interval", 12*time.Hour)
	viper.SetDefault("addons.auto_grant_permissions", true)

	viper.SetDefault("icons.cache_size", 256)

	viper.SetDefault("uploads.max_age", 24*time.Hour)

	viper.SetDefault("diagnostics.enabled", false)
	viper.SetDefault("diagnostics.addr", "127.0.0.1:6060")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("BROWSERD")
	viper.AutomaticEnv()

	// Explicit environment variable bindings for the settings auxiliary
	// processes are launched with.
	_ = viper.BindEnv("process_role", "BROWSERD_PROCESS_ROLE")
	_ = viper.BindEnv("data_paths.data_dir", "BROWSERD_DATA_DIR")
	_ = viper.BindEnv("data_paths.session_db_path", "BROWSERD_SESSION_DB")
	_ = viper.BindEnv("data_paths.uploads_dir", "BROWSERD_UPLOADS_DIR")
	_ = viper.BindEnv("data_paths.icons_dir", "BROWSERD_ICONS_DIR")
	_ = viper.BindEnv("engine.endpoint", "BROWSERD_ENGINE_ENDPOINT")
}
