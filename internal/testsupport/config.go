package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/hik1komori/life-dorama-bot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Pacing intervals are zero so tests never sleep on the wall clock.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Telegram.BotToken = "123456:test-token"
	cfgVal.Telegram.AdminIDs = []int64{1}
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pacing.EpisodeIntervalMS = 0
	cfgVal.Pacing.BroadcastIntervalMS = 0
	cfgVal.Webhook.Bind = "127.0.0.1:0"
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAdmins replaces the privileged user ids.
func WithAdmins(ids ...int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.AdminIDs = append([]int64(nil), ids...)
	}
}

// WithNtfyTopic points notifications at a test server.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithRedis enables the Redis cache and broadcast lock.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Redis.Addr = addr
	}
}

// WithAPIBaseURL points the Telegram client at a test server.
func WithAPIBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.APIBaseURL = url
	}
}

// WithEpisodesPageSize sets how many episode buttons the picker shows per page.
func WithEpisodesPageSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.EpisodesPageSize = n
	}
}
