package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/cache"
	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	return cfg.Logging.Level
}

// logger returns a console logger for one-shot commands. Output goes to
// stderr so tables and JSON on stdout stay clean.
func (c *commandContext) logger(cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:       c.logLevel(cfg),
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// catalogWriter is what mutating catalog and channel commands write through.
type catalogWriter interface {
	AddTitle(ctx context.Context, title store.Title) (*store.Title, error)
	DeleteTitle(ctx context.Context, code string) error
	AddEpisode(ctx context.Context, episode store.Episode) (*store.Episode, error)
	AddChannel(ctx context.Context, channel store.Channel) (*store.Channel, error)
	DeleteChannel(ctx context.Context, id int64) error
	SetChannelActive(ctx context.Context, id int64, active bool) error
}

// withCatalog is withStore for commands that change cached data. With
// redis.addr set, writes go through the cache so a running bot stops serving
// the entries they touch.
func (c *commandContext) withCatalog(fn func(cfg *config.Config, st catalogWriter) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		if cfg.Redis.Addr == "" {
			return fn(cfg, st)
		}
		r, err := cache.New(cfg)
		if err != nil {
			return err
		}
		defer r.Close()
		return fn(cfg, cache.NewCachedStore(st, r, cfg.CacheTTL(), c.logger(cfg)))
	})
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
