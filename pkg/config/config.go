package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "helix-console"

type Config struct {
	Helix         HelixConfig        `yaml:"helix" json:"helix"`
	Web           WebConfig          `yaml:"web" json:"web"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Storage       StorageConfig      `yaml:"storage" json:"storage"`
	EnableAudit   bool               `yaml:"enable_audit" json:"enable_audit"`
	LogLevel      string             `yaml:"log_level" json:"log_level"`
}

// HelixConfig describes how to reach the Helix REST service.
type HelixConfig struct {
	// Endpoint is the base URL of helix-rest, without the /admin/v2 suffix
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// TimeoutSeconds bounds every single backend call (default: 10)
	TimeoutSeconds int  `yaml:"timeout_seconds" json:"timeout_seconds"`
	RetryEnabled   bool `yaml:"retry_enabled" json:"retry_enabled"`
	MaxRetries     int  `yaml:"max_retries" json:"max_retries"`
	// MaxBackoff in seconds
	MaxBackoff    float64 `yaml:"max_backoff" json:"max_backoff"`
	SkipTLSVerify bool    `yaml:"skip_tls_verify" json:"skip_tls_verify"`
}

// WebConfig holds the HTTP front door settings.
type WebConfig struct {
	Port int `yaml:"port" json:"port"`
	// AdminUser and AdminPasswordHash enable basic auth on mutating endpoints.
	// The hash is a bcrypt hash; an empty hash disables auth.
	AdminUser         string `yaml:"admin_user" json:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash" json:"-"`
	// RateLimit is the number of API requests per minute per client
	RateLimit                  int      `yaml:"rate_limit" json:"rate_limit"`
	RequestTimeoutSeconds      int      `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	SessionTTLMinutes          int      `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`
	ConfirmationTimeoutSeconds int      `yaml:"confirmation_timeout_seconds" json:"confirmation_timeout_seconds"`
	AllowedOrigins             []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// NotificationConfig controls the toast and dialog layer.
type NotificationConfig struct {
	// SnackBarDurationMS is how long a snackbar stays before auto-dismiss
	SnackBarDurationMS int    `yaml:"snackbar_duration_ms" json:"snackbar_duration_ms"`
	SnackBarAction     string `yaml:"snackbar_action" json:"snackbar_action"`
}

// StorageConfig holds audit persistence configuration
type StorageConfig struct {
	DBType     string `yaml:"db_type" json:"db_type"` // sqlite, postgres, mariadb, mysql
	DBPath     string `yaml:"db_path" json:"db_path"` // SQLite file (default: ~/.config/helix-console/audit.db)
	DBHost     string `yaml:"db_host" json:"db_host"`
	DBPort     int    `yaml:"db_port" json:"db_port"`
	DBName     string `yaml:"db_name" json:"db_name"`
	DBUser     string `yaml:"db_user" json:"db_user"`
	DBPassword string `yaml:"db_password" json:"-"`
	DBSSLMode  string `yaml:"db_ssl_mode" json:"db_ssl_mode"`

	// EnableAuditFile mirrors audit entries to a plain text log
	EnableAuditFile bool   `yaml:"enable_audit_file" json:"enable_audit_file"`
	AuditFilePath   string `yaml:"audit_file_path" json:"audit_file_path"` // default: ~/.config/helix-console/audit.log

	// AuditRetentionDays is how long audit rows are kept (0 = forever)
	AuditRetentionDays int `yaml:"audit_retention_days" json:"audit_retention_days"`
	// RetentionSchedule is a cron spec for the purge job
	RetentionSchedule string `yaml:"retention_schedule" json:"retention_schedule"`
}

// DefaultHelixEndpoint is where helix-rest listens in a default deployment
const DefaultHelixEndpoint = "http://localhost:8100"

// DefaultSnackBarDuration matches the console's toast lifetime
const DefaultSnackBarDuration = 2000 * time.Millisecond

func GetConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// GetConfigDir returns the console configuration directory
func GetConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DefaultDBPath returns the default SQLite database path
func DefaultDBPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "audit.db")
}

// DefaultLogDir returns where log files are written
func DefaultLogDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

func NewDefaultConfig() *Config {
	return &Config{
		Helix: HelixConfig{
			Endpoint:       DefaultHelixEndpoint,
			TimeoutSeconds: 10,
			RetryEnabled:   true,
			MaxRetries:     3,
			MaxBackoff:     5.0,
		},
		Web: WebConfig{
			Port:                       8080,
			AdminUser:                  "admin",
			RateLimit:                  600,
			RequestTimeoutSeconds:      30,
			SessionTTLMinutes:          60,
			ConfirmationTimeoutSeconds: 300,
			AllowedOrigins:             []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"},
		},
		Notifications: NotificationConfig{
			SnackBarDurationMS: int(DefaultSnackBarDuration / time.Millisecond),
			SnackBarAction:     "OK",
		},
		Storage: StorageConfig{
			DBType:             "sqlite",
			AuditRetentionDays: 90,
			RetentionSchedule:  "@daily",
		},
		EnableAudit: true,
		LogLevel:    "info",
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if c.Helix.Endpoint == "" {
		return fmt.Errorf("helix.endpoint must be set")
	}
	if !strings.HasPrefix(c.Helix.Endpoint, "http://") && !strings.HasPrefix(c.Helix.Endpoint, "https://") {
		return fmt.Errorf("helix.endpoint %q must be an http(s) URL", c.Helix.Endpoint)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	switch c.Storage.DBType {
	case "", "sqlite", "postgres", "mariadb", "mysql":
	default:
		return fmt.Errorf("unsupported storage.db_type %q", c.Storage.DBType)
	}
	return nil
}

// HelixTimeout returns the per-call backend timeout
func (c *Config) HelixTimeout() time.Duration {
	if c.Helix.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Helix.TimeoutSeconds) * time.Second
}

// SnackBarDuration returns the auto-dismiss delay for snackbars
func (c *Config) SnackBarDuration() time.Duration {
	if c.Notifications.SnackBarDurationMS <= 0 {
		return DefaultSnackBarDuration
	}
	return time.Duration(c.Notifications.SnackBarDurationMS) * time.Millisecond
}

// SessionTTL returns how long an idle browser session keeps its dialogs
func (c *Config) SessionTTL() time.Duration {
	if c.Web.SessionTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Web.SessionTTLMinutes) * time.Minute
}

// ConfirmationTimeout bounds how long an action waits on a dialog
func (c *Config) ConfirmationTimeout() time.Duration {
	if c.Web.ConfirmationTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Web.ConfirmationTimeoutSeconds) * time.Second
}

// RequestTimeout bounds ordinary (non-streaming, non-dialog) requests
func (c *Config) RequestTimeout() time.Duration {
	if c.Web.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Web.RequestTimeoutSeconds) * time.Second
}

// GetEffectiveDBPath returns the effective database path
func (c *Config) GetEffectiveDBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return DefaultDBPath()
}

// GetEffectiveAuditFilePath returns the effective audit log file path
func (c *Config) GetEffectiveAuditFilePath() string {
	if c.Storage.AuditFilePath != "" {
		return c.Storage.AuditFilePath
	}
	return filepath.Join(GetConfigDir(), "audit.log")
}

// LoadConfig reads the config file at the default location.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(GetConfigPath())
}

// LoadConfigFrom reads the config at path, falling back to defaults when the
// file is missing. A file that exists but does not parse is an error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies HELIX_CONSOLE_* environment variable overrides.
// Environment variables take precedence over config file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HELIX_CONSOLE_ENDPOINT"); v != "" {
		cfg.Helix.Endpoint = v
	}
	if v := os.Getenv("HELIX_CONSOLE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("HELIX_CONSOLE_ADMIN_USER"); v != "" {
		cfg.Web.AdminUser = v
	}
	if v := os.Getenv("HELIX_CONSOLE_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Web.AdminPasswordHash = v
	}
	if v := os.Getenv("HELIX_CONSOLE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HELIX_CONSOLE_WS_ALLOWED_ORIGINS"); v != "" {
		cfg.Web.AllowedOrigins = strings.Split(v, ",")
	}
}

func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes the config as YAML to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
