package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hik1komori/life-dorama-bot/internal/access"
	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/delivery"
	"github.com/hik1komori/life-dorama-bot/internal/ledger"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const tracerName = "github.com/hik1komori/life-dorama-bot/internal/bot"

// Store is the persistence surface the bot reads and mutates. Both
// *store.Store and *cache.CachedStore satisfy it.
type Store interface {
	TouchUser(ctx context.Context, profile store.UserProfile) error
	GetUser(ctx context.Context, id int64) (*store.User, error)

	AddTitle(ctx context.Context, title store.Title) (*store.Title, error)
	GetTitle(ctx context.Context, code string) (*store.Title, error)
	ListTitles(ctx context.Context, limit, offset int) ([]store.TitleSummary, error)
	CountTitles(ctx context.Context) (int, error)
	Search(ctx context.Context, query string, limit int) ([]store.TitleSummary, error)
	ListRecent(ctx context.Context, limit int) ([]store.TitleSummary, error)
	ListPopular(ctx context.Context, limit int) ([]store.TitleSummary, error)
	RandomTitle(ctx context.Context) (*store.TitleSummary, error)
	DeleteTitle(ctx context.Context, code string) error
	AddEpisode(ctx context.Context, episode store.Episode) (*store.Episode, error)
	ListEpisodes(ctx context.Context, code string) ([]store.Episode, error)

	AddChannel(ctx context.Context, channel store.Channel) (*store.Channel, error)
	GetChannel(ctx context.Context, id int64) (*store.Channel, error)
	DeleteChannel(ctx context.Context, id int64) error
	ListChannels(ctx context.Context, activeOnly bool) ([]store.Channel, error)

	ListRequests(ctx context.Context, statuses ...store.RequestStatus) ([]store.AccessRequest, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	Settings(ctx context.Context) (map[string]string, error)
	Stats(ctx context.Context, popularLimit int) (*store.Stats, error)
}

// Deps are the collaborators a Bot is built from.
type Deps struct {
	Store      Store
	Transport  transport.Transport
	Gateway    *access.Gateway
	Ledger     *ledger.Ledger
	Delivery   *delivery.Pipeline
	Broadcasts *broadcast.Coordinator
	Notifier   notifications.Service
}

// Bot routes inbound updates. Handle is safe for concurrent use.
type Bot struct {
	store      Store
	transport  transport.Transport
	gateway    *access.Gateway
	ledger     *ledger.Ledger
	delivery   *delivery.Pipeline
	broadcasts *broadcast.Coordinator
	notifier   notifications.Service
	logger     *slog.Logger
	tracer     trace.Tracer

	admins           map[int64]struct{}
	adminIDs         []int64
	pageSize         int
	episodesPageSize int
	searchLimit      int

	sessions *sessions
	slots    chan struct{}
	runs     chan struct{}
	events   eventLane
	wg       sync.WaitGroup
}

// eventLane applies join requests and membership changes one at a time, in
// the order Handle saw them. The ledger outcome depends on that order.
type eventLane struct {
	mu      sync.Mutex
	queue   []queuedEvent
	running bool
}

type queuedEvent struct {
	ctx    context.Context
	update transport.Update
}

// New builds a bot. The admin ids are copied out of cfg; cfg is not retained.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Bot {
	adminIDs := cfg.AdminIDs()
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	workers := cfg.Telegram.MaxConcurrentUpdates
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		store:            deps.Store,
		transport:        deps.Transport,
		gateway:          deps.Gateway,
		ledger:           deps.Ledger,
		delivery:         deps.Delivery,
		broadcasts:       deps.Broadcasts,
		notifier:         notifier,
		logger:           logging.NewComponentLogger(logger, "bot"),
		tracer:           otel.Tracer(tracerName),
		admins:           admins,
		adminIDs:         adminIDs,
		pageSize:         positive(cfg.Catalog.PageSize, 10),
		episodesPageSize: positive(cfg.Catalog.EpisodesPageSize, 20),
		searchLimit:      positive(cfg.Catalog.SearchLimit, 20),
		sessions:         newSessions(),
		slots:            make(chan struct{}, workers),
		runs:             make(chan struct{}, workers),
	}
}

// Handle processes the update on its own goroutine. It blocks only while
// all worker slots are busy, and returns early when ctx is cancelled.
// Join requests and membership changes skip the worker slots and are applied
// sequentially in arrival order.
func (b *Bot) Handle(ctx context.Context, update transport.Update) {
	if update.JoinRequest != nil || update.MembershipChange != nil {
		b.enqueueEvent(ctx, update)
		return
	}
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.slots }()
		b.Process(ctx, update)
	}()
}

// Wait blocks until every update accepted by Handle has finished, including
// batch deliveries and broadcasts they started.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) enqueueEvent(ctx context.Context, update transport.Update) {
	b.events.mu.Lock()
	defer b.events.mu.Unlock()
	b.events.queue = append(b.events.queue, queuedEvent{ctx: ctx, update: update})
	if b.events.running {
		return
	}
	b.events.running = true
	b.wg.Add(1)
	go b.drainEvents()
}

func (b *Bot) drainEvents() {
	defer b.wg.Done()
	for {
		b.events.mu.Lock()
		if len(b.events.queue) == 0 {
			b.events.running = false
			b.events.mu.Unlock()
			return
		}
		next := b.events.queue[0]
		b.events.queue[0] = queuedEvent{}
		b.events.queue = b.events.queue[1:]
		b.events.mu.Unlock()
		if next.ctx.Err() != nil {
			continue
		}
		b.Process(next.ctx, next.update)
	}
}

// detach runs a long paced job (batch delivery, broadcast) off the update
// worker slots so polling keeps flowing. Jobs share their own bound.
func (b *Bot) detach(ctx context.Context, run func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.runs <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-b.runs }()
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(b.logger, "paced job panicked", "handler_panic",
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
				)
			}
		}()
		run(ctx)
	}()
}

// Process handles one update synchronously. A panic in a handler is logged
// and swallowed.
func (b *Bot) Process(ctx context.Context, update transport.Update) {
	started := time.Now()
	logger := b.logger.With(
		logging.Int64(logging.FieldUpdateID, update.ID),
		logging.String("update_kind", update.Kind()),
	)
	if sender := update.Sender(); sender != nil {
		logger = logger.With(logging.UserID(sender.ID))
	}
	ctx, span := b.tracer.Start(ctx, "bot.update", trace.WithAttributes(
		attribute.Int64("update.id", update.ID),
		attribute.String("update.kind", update.Kind()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "update handler panicked", "handler_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the update payload and stack trace"),
			)
		}
	}()

	switch {
	case update.Message != nil:
		b.onMessage(ctx, logger, update.Message)
	case update.Callback != nil:
		b.onCallback(ctx, logger, update.Callback)
	case update.JoinRequest != nil:
		b.onJoinRequest(ctx, logger, update.JoinRequest)
	case update.MembershipChange != nil:
		b.onMembershipChange(ctx, logger, update.MembershipChange)
	}
	logger.Debug("update handled", logging.Duration("elapsed", time.Since(started)))
}

// IsAdmin reports whether the user id is privileged.
func (b *Bot) IsAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

func positive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
