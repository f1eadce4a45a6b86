package botrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hik1komori/life-dorama-bot/internal/access"
	"github.com/hik1komori/life-dorama-bot/internal/bot"
	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/cache"
	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/delivery"
	"github.com/hik1komori/life-dorama-bot/internal/ledger"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// broadcastLockTTL bounds how long a crashed process can hold the shared
// broadcast lock.
const broadcastLockTTL = 6 * time.Hour

// Runtime is the assembled bot with the resources it owns.
type Runtime struct {
	Bot      *bot.Bot
	Store    bot.Store
	Notifier notifications.Service

	redis *cache.Redis
}

// Assemble wires the bot components over an open store and a transport.
// With redis.addr set, catalog reads go through the Redis cache and
// broadcasts take a shared lock; an unreachable Redis is a startup error.
func Assemble(ctx context.Context, cfg *config.Config, st *store.Store, tr transport.Transport, notifier notifications.Service, clock pacing.Clock, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil || st == nil || tr == nil {
		return nil, fmt.Errorf("assemble: config, store and transport are required")
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	if clock == nil {
		clock = pacing.RealClock()
	}

	rt := &Runtime{Notifier: notifier}
	var (
		catalog      bot.Store            = st
		channels     access.ChannelLister = st
		broadcastOpt []broadcast.Option
	)
	if cfg.Redis.Addr != "" {
		r, err := cache.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		cached := cache.NewCachedStore(st, r, cfg.CacheTTL(), logger)
		catalog, channels = cached, cached
		broadcastOpt = append(broadcastOpt, broadcast.WithLock(cache.NewLock(r, "broadcast", broadcastLockTTL)))
		rt.redis = r
		logger.Info("redis cache enabled",
			logging.String("addr", cfg.Redis.Addr),
			logging.Duration("ttl", cfg.CacheTTL()),
		)
	}
	if cfg.Pacing.ProgressEvery > 0 {
		broadcastOpt = append(broadcastOpt, broadcast.WithProgressEvery(cfg.Pacing.ProgressEvery))
	}
	broadcastOpt = append(broadcastOpt, broadcast.WithNotifier(notifier))

	pipeline := delivery.NewPipeline(catalog, tr, pacing.Episodes(cfg, clock), logger,
		delivery.WithCompletionMarkup(nil, transport.ReplyKeyboard(commands.MainKeyboard())),
		delivery.WithProtectedContent(true),
	)
	coordinator := broadcast.New(st, tr, pacing.Broadcasts(cfg, clock), logger, broadcastOpt...)

	rt.Store = catalog
	rt.Bot = bot.New(cfg, bot.Deps{
		Store:      catalog,
		Transport:  tr,
		Gateway:    access.New(channels, st, tr, cfg.AdminIDs(), logger),
		Ledger:     ledger.New(st, logger),
		Delivery:   pipeline,
		Broadcasts: coordinator,
		Notifier:   notifier,
	}, logger)
	return rt, nil
}

// Close waits for in-flight updates and releases the Redis connection.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Bot.Wait()
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
