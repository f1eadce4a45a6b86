package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

const defaultTTL = 5 * time.Minute

const keyActiveChannels = "channels:active"

func titleKey(code string) string    { return "title:" + store.NormalizeCode(code) }
func episodesKey(code string) string { return "episodes:" + store.NormalizeCode(code) }

// CachedStore serves title, episode-list and active-channel reads from Redis
// and invalidates them on writes. Every other method passes through to the
// embedded store. Cached episode view counters lag by at most the TTL.
type CachedStore struct {
	*store.Store
	cache  *Redis
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner. A non-positive ttl uses the default.
func NewCachedStore(inner *store.Store, r *Redis, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedStore{Store: inner, cache: r, ttl: ttl, logger: logging.NewComponentLogger(logger, "cache")}
}

func readThrough[T any](ctx context.Context, c *CachedStore, key string, load func() (T, error)) (T, error) {
	if v, err := Get[T](ctx, c.cache, key); err == nil {
		return v, nil
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Debug("cache read failed", logging.String("key", key), logging.Error(err))
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := Set(ctx, c.cache, key, v, c.ttl); err != nil {
		c.logger.Debug("cache write failed", logging.String("key", key), logging.Error(err))
	}
	return v, nil
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := Del(ctx, c.cache, keys...); err != nil {
		logging.WarnWithContext(c.logger, "cache invalidation failed", "cache_invalidate_failed",
			logging.String(logging.FieldImpact, "readers may see stale catalog data until the TTL expires"),
			logging.Error(err),
		)
	}
}

// GetTitle implements a cached store.Store.GetTitle.
func (c *CachedStore) GetTitle(ctx context.Context, code string) (*store.Title, error) {
	title, err := readThrough(ctx, c, titleKey(code), func() (store.Title, error) {
		t, err := c.Store.GetTitle(ctx, code)
		if err != nil {
			return store.Title{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, err
	}
	return &title, nil
}

// ListEpisodes implements a cached store.Store.ListEpisodes.
func (c *CachedStore) ListEpisodes(ctx context.Context, code string) ([]store.Episode, error) {
	return readThrough(ctx, c, episodesKey(code), func() ([]store.Episode, error) {
		return c.Store.ListEpisodes(ctx, code)
	})
}

// ListActiveChannels implements a cached store.Store.ListActiveChannels.
func (c *CachedStore) ListActiveChannels(ctx context.Context) ([]store.Channel, error) {
	return readThrough(ctx, c, keyActiveChannels, func() ([]store.Channel, error) {
		return c.Store.ListActiveChannels(ctx)
	})
}

// AddTitle writes through and invalidates the cached title.
func (c *CachedStore) AddTitle(ctx context.Context, title store.Title) (*store.Title, error) {
	saved, err := c.Store.AddTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, titleKey(saved.Code))
	return saved, nil
}

// AddEpisode writes through and invalidates the cached episode list.
func (c *CachedStore) AddEpisode(ctx context.Context, episode store.Episode) (*store.Episode, error) {
	saved, err := c.Store.AddEpisode(ctx, episode)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, episodesKey(saved.TitleCode))
	return saved, nil
}

// DeleteTitle removes the title and its cached entries.
func (c *CachedStore) DeleteTitle(ctx context.Context, code string) error {
	if err := c.Store.DeleteTitle(ctx, code); err != nil {
		return err
	}
	c.invalidate(ctx, titleKey(code), episodesKey(code))
	return nil
}

// AddChannel writes through and invalidates the active channel list.
func (c *CachedStore) AddChannel(ctx context.Context, channel store.Channel) (*store.Channel, error) {
	saved, err := c.Store.AddChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, keyActiveChannels)
	return saved, nil
}

// SetChannelActive writes through and invalidates the active channel list.
func (c *CachedStore) SetChannelActive(ctx context.Context, id int64, active bool) error {
	if err := c.Store.SetChannelActive(ctx, id, active); err != nil {
		return err
	}
	c.invalidate(ctx, keyActiveChannels)
	return nil
}

// DeleteChannel writes through and invalidates the active channel list.
func (c *CachedStore) DeleteChannel(ctx context.Context, id int64) error {
	if err := c.Store.DeleteChannel(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, keyActiveChannels)
	return nil
}

// Flush drops every cached catalog entry, e.g. after a bulk import.
func (c *CachedStore) Flush(ctx context.Context) error {
	for _, pattern := range []string{"title:*", "episodes:*", "channels:*"} {
		if err := DelPattern(ctx, c.cache, pattern); err != nil {
			return err
		}
	}
	return nil
}
