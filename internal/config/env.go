package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides lists the variables that take precedence over the config file.
// The unprefixed names are accepted for deployments that predate the prefix.
type envOverrides struct {
	BotToken       string  `env:"DORAMABOT_BOT_TOKEN"`
	LegacyBotToken string  `env:"BOT_TOKEN"`
	AdminIDs       []int64 `env:"DORAMABOT_ADMIN_IDS" envSeparator:","`
	LegacyAdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`
	NtfyTopic      string  `env:"DORAMABOT_NTFY_TOPIC"`
	RedisAddr      string  `env:"DORAMABOT_REDIS_ADDR"`
	RedisPassword  string  `env:"DORAMABOT_REDIS_PASSWORD"`
	WebhookSecret  string  `env:"DORAMABOT_WEBHOOK_SECRET"`
	TracingURL     string  `env:"DORAMABOT_OTEL_ENDPOINT"`
	LogLevel       string  `env:"DORAMABOT_LOG_LEVEL"`
}

// loadDotEnv reads a .env file from the config directory and then from the
// working directory. Variables already present in the environment win.
func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, ".env"), ".env"}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file: %w", err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if token := firstNonEmpty(overrides.BotToken, overrides.LegacyBotToken); token != "" {
		c.Telegram.BotToken = token
	}
	switch {
	case len(overrides.AdminIDs) > 0:
		c.Telegram.AdminIDs = overrides.AdminIDs
	case len(overrides.LegacyAdminIDs) > 0:
		c.Telegram.AdminIDs = overrides.LegacyAdminIDs
	}
	if v := strings.TrimSpace(overrides.NtfyTopic); v != "" {
		c.Notifications.NtfyTopic = v
	}
	if v := strings.TrimSpace(overrides.RedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if overrides.RedisPassword != "" {
		c.Redis.Password = overrides.RedisPassword
	}
	if v := strings.TrimSpace(overrides.WebhookSecret); v != "" {
		c.Webhook.Secret = v
	}
	if v := strings.TrimSpace(overrides.TracingURL); v != "" {
		c.Tracing.Endpoint = v
	}
	if v := strings.TrimSpace(overrides.LogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
