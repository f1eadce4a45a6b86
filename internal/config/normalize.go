package config

import (
	"fmt"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizePacing()
	c.normalizeCatalog()
	c.normalizeNotifications()
	c.normalizeWebhook()
	c.normalizeRedis()
	c.normalizeTracing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIBaseURL), "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = defaultAPIBaseURL
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultRequestTimeout
	}
	if c.Telegram.MaxConcurrentUpdates <= 0 {
		c.Telegram.MaxConcurrentUpdates = defaultMaxConcurrentUpdates
	}
	ids := slices.Clone(c.Telegram.AdminIDs)
	slices.Sort(ids)
	c.Telegram.AdminIDs = slices.Compact(ids)
}

func (c *Config) normalizePacing() {
	c.Pacing.Mode = strings.ToLower(strings.TrimSpace(c.Pacing.Mode))
	if c.Pacing.Mode == "" {
		c.Pacing.Mode = defaultPacingMode
	}
	if c.Pacing.BroadcastBurst <= 0 {
		c.Pacing.BroadcastBurst = defaultBroadcastBurst
	}
	if c.Pacing.ProgressEvery <= 0 {
		c.Pacing.ProgressEvery = defaultProgressEvery
	}
}

func (c *Config) normalizeCatalog() {
	if c.Catalog.SearchLimit <= 0 {
		c.Catalog.SearchLimit = defaultSearchLimit
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = defaultPageSize
	}
	if c.Catalog.EpisodesPageSize <= 0 {
		c.Catalog.EpisodesPageSize = defaultEpisodesPageSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeWebhook() {
	c.Webhook.Bind = strings.TrimSpace(c.Webhook.Bind)
	if c.Webhook.Bind == "" {
		c.Webhook.Bind = defaultWebhookBind
	}
	c.Webhook.Secret = strings.TrimSpace(c.Webhook.Secret)
	c.Webhook.PublicURL = strings.TrimRight(strings.TrimSpace(c.Webhook.PublicURL), "/")
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.CacheTTLSeconds <= 0 {
		c.Redis.CacheTTLSeconds = defaultRedisCacheTTLSeconds
	}
}

func (c *Config) normalizeTracing() {
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
