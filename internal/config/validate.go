package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable. The bot token is not required
// here so that offline admin commands work without one; see ValidateForServe.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validatePacing(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"catalog.search_limit":          c.Catalog.SearchLimit,
		"catalog.page_size":             c.Catalog.PageSize,
		"catalog.episodes_page_size":    c.Catalog.EpisodesPageSize,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"redis.cache_ttl_seconds":       c.Redis.CacheTTLSeconds,
	})
}

// ValidateForServe adds the checks that only matter when talking to Telegram.
func (c *Config) ValidateForServe() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/doramabot/config.toml"
		}
		return fmt.Errorf("telegram.bot_token is required. Set DORAMABOT_BOT_TOKEN or edit %s (create with 'doramabot config init')", defaultPath)
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return errors.New("telegram.admin_ids must list at least one admin user id")
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if !strings.HasPrefix(c.Telegram.APIBaseURL, "http://") && !strings.HasPrefix(c.Telegram.APIBaseURL, "https://") {
		return fmt.Errorf("telegram.api_base_url must be an http(s) URL, got %q", c.Telegram.APIBaseURL)
	}
	for _, id := range c.Telegram.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("telegram.admin_ids contains invalid user id %d", id)
		}
	}
	return ensurePositiveMap(map[string]int{
		"telegram.poll_timeout":           c.Telegram.PollTimeout,
		"telegram.request_timeout":        c.Telegram.RequestTimeout,
		"telegram.max_concurrent_updates": c.Telegram.MaxConcurrentUpdates,
	})
}

func (c *Config) validatePacing() error {
	switch c.Pacing.Mode {
	case PacingModeInterval, PacingModeTokenBucket:
	default:
		return fmt.Errorf("pacing.mode: unsupported value %q (want %q or %q)", c.Pacing.Mode, PacingModeInterval, PacingModeTokenBucket)
	}
	if c.Pacing.EpisodeIntervalMS < 0 {
		return errors.New("pacing.episode_interval_ms must be >= 0")
	}
	if c.Pacing.BroadcastIntervalMS < 0 {
		return errors.New("pacing.broadcast_interval_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.Secret == "" {
		return errors.New("webhook.secret must be set when webhook.enabled is true")
	}
	if c.Webhook.PublicURL == "" {
		return errors.New("webhook.public_url must be set when webhook.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
