package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Pacing modes.
const (
	PacingModeInterval    = "interval"
	PacingModeTokenBucket = "token_bucket"
)

// Telegram contains Bot API connection settings and the privileged user list.
type Telegram struct {
	BotToken             string  `toml:"bot_token"`
	APIBaseURL           string  `toml:"api_base_url"`
	PollTimeout          int     `toml:"poll_timeout"`
	RequestTimeout       int     `toml:"request_timeout"`
	AdminIDs             []int64 `toml:"admin_ids"`
	MaxConcurrentUpdates int     `toml:"max_concurrent_updates"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Pacing contains the throttling applied to episode delivery and broadcasts.
type Pacing struct {
	Mode                string `toml:"mode"`
	EpisodeIntervalMS   int    `toml:"episode_interval_ms"`
	BroadcastIntervalMS int    `toml:"broadcast_interval_ms"`
	BroadcastBurst      int    `toml:"broadcast_burst"`
	ProgressEvery       int    `toml:"progress_every"`
}

// Catalog contains listing and search limits.
type Catalog struct {
	SearchLimit      int `toml:"search_limit"`
	PageSize         int `toml:"page_size"`
	EpisodesPageSize int `toml:"episodes_page_size"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JoinRequests   bool   `toml:"join_requests"`
	Broadcasts     bool   `toml:"broadcasts"`
	Errors         bool   `toml:"errors"`
}

// Webhook configures the optional HTTP intake for Telegram updates.
type Webhook struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	Secret    string `toml:"secret"`
	PublicURL string `toml:"public_url"`
}

// Redis configures the optional shared cache and broadcast lock.
type Redis struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

// Tracing configures OpenTelemetry export. An empty endpoint disables tracing.
type Tracing struct {
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for doramabot.
//
// Configuration sections by subsystem:
//   - Telegram: Bot API access and admin ids
//   - Paths: database and log directories
//   - Pacing: delivery and broadcast throttling
//   - Catalog: search and pagination limits
//   - Notifications: ntfy operator alerts
//   - Webhook: optional HTTP update intake
//   - Redis: optional cache and broadcast lock
//   - Tracing: optional OpenTelemetry export
//   - Logging: log format and level
type Config struct {
	Telegram      Telegram      `toml:"telegram"`
	Paths         Paths         `toml:"paths"`
	Pacing        Pacing        `toml:"pacing"`
	Catalog       Catalog       `toml:"catalog"`
	Notifications Notifications `toml:"notifications"`
	Webhook       Webhook       `toml:"webhook"`
	Redis         Redis         `toml:"redis"`
	Tracing       Tracing       `toml:"tracing"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/doramabot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded, environment overrides applied, and defaults filled in.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("doramabot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "doramabot.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "doramabot.lock")
}

// IsAdmin reports whether the Telegram user id is privileged.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Telegram.AdminIDs, userID)
}

// AdminIDs returns a copy of the privileged user ids.
func (c *Config) AdminIDs() []int64 {
	return slices.Clone(c.Telegram.AdminIDs)
}

// EpisodeInterval is the pause before each episode of a batch delivery.
func (c *Config) EpisodeInterval() time.Duration {
	return time.Duration(c.Pacing.EpisodeIntervalMS) * time.Millisecond
}

// BroadcastInterval is the pause before each broadcast recipient.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Pacing.BroadcastIntervalMS) * time.Millisecond
}

// PollTimeout is the long-polling timeout passed to getUpdates.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeout) * time.Second
}

// RequestTimeout bounds a single Bot API call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Telegram.RequestTimeout) * time.Second
}

// CacheTTL is the Redis catalog cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
