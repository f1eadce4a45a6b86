package telegram

import (
	"context"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// Handler receives decoded updates in arrival order. It must not block for
// long; the bot decides what runs concurrently.
type Handler func(ctx context.Context, update transport.Update)

// Poll runs getUpdates long polling until ctx is cancelled. Updates are
// handed to handle one at a time, in the order Telegram assigned them.
// Failed polls are logged and retried by the SDK with backoff.
func (c *Client) Poll(ctx context.Context, logger *slog.Logger, handle Handler) error {
	c.mu.Lock()
	c.handler = handle
	c.logger = logging.NewComponentLogger(logger, "telegram-poller")
	c.polling = ctx
	c.mu.Unlock()

	c.api.Start(ctx)
	return nil
}

func (c *Client) dispatch(ctx context.Context, _ *tgbot.Bot, raw *models.Update) {
	c.mu.Lock()
	handle, logger := c.handler, c.logger
	c.mu.Unlock()
	if handle == nil || raw == nil {
		return
	}
	update, ok, err := updateFrom(raw)
	if err != nil {
		logger.Debug("update skipped", logging.Int64(logging.FieldUpdateID, raw.ID), logging.Error(err))
		return
	}
	if !ok {
		return
	}
	handle(ctx, update)
}

// pollError receives SDK-side failures (getUpdates errors, lost updates).
// Errors raised while shutting down are expected and logged at debug.
func (c *Client) pollError(err error) {
	c.mu.Lock()
	logger, polling := c.logger, c.polling
	c.mu.Unlock()
	if polling != nil && polling.Err() != nil {
		logger.Debug("poll stopped", logging.Error(err))
		return
	}
	logging.WarnWithContext(logger, "getUpdates failed", "poll_failed",
		logging.String(logging.FieldErrorHint, "check network access and the bot token"),
		logging.String(logging.FieldImpact, "updates are delayed until polling recovers"),
		logging.Error(err),
	)
}
