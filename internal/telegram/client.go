package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 30 * time.Second
)

// Client adapts the Bot API SDK to the transport contracts. It adds per-call
// timeouts, retries of transient failures and APIError classification.
type Client struct {
	api            *tgbot.Bot
	requestTimeout time.Duration

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(ctx context.Context, d time.Duration) error
	httpClient       *http.Client

	mu      sync.Mutex
	handler Handler
	logger  *slog.Logger
	polling context.Context
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for every Bot API call.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts per call.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a client from the telegram configuration section. The
// token is not verified here; call GetMe for that.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	requestTimeout := cfg.RequestTimeout()
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	c := &Client{
		requestTimeout:   requestTimeout,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          sleepContext,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// getUpdates asks Telegram to hold the request for pollWindow minus a second.
	pollWindow := cfg.PollTimeout() + time.Second
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: pollWindow + requestTimeout}
	}
	sdkOpts := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithHTTPClient(pollWindow, c.httpClient),
		tgbot.WithAllowedUpdates(AllowedUpdates),
		tgbot.WithDefaultHandler(c.dispatch),
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithWorkers(1),
		tgbot.WithErrorsHandler(c.pollError),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIBaseURL), "/"); base != "" {
		sdkOpts = append(sdkOpts, tgbot.WithServerURL(base))
	}
	api, err := tgbot.New(strings.TrimSpace(cfg.Telegram.BotToken), sdkOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	c.api = api
	return c, nil
}

// BotInfo is the identity returned by getMe.
type BotInfo struct {
	ID       int64
	Username string
}

// GetMe verifies the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (BotInfo, error) {
	var info BotInfo
	err := c.call(ctx, "getMe", func(ctx context.Context) error {
		user, err := c.api.GetMe(ctx)
		if err != nil {
			return err
		}
		info = BotInfo{ID: user.ID, Username: user.Username}
		return nil
	})
	return info, err
}

// SendText implements transport.Sender.
func (c *Client) SendText(ctx context.Context, chatID int64, text transport.Text) (transport.MessageRef, error) {
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               text.Body,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
		ReplyMarkup:        markupFor(text.Inline, text.Reply),
	}
	if text.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	return c.sendMessage(ctx, "sendMessage", func(ctx context.Context) (*models.Message, error) {
		return c.api.SendMessage(ctx, params)
	})
}

// SendVideo implements transport.Sender. The content reference is a file id
// Telegram already stores, so nothing is uploaded.
func (c *Client) SendVideo(ctx context.Context, chatID int64, video transport.Video) (transport.MessageRef, error) {
	params := &tgbot.SendVideoParams{
		ChatID:         chatID,
		Video:          &models.InputFileString{Data: video.ContentRef},
		Caption:        video.Caption,
		ProtectContent: video.Protect,
		ReplyMarkup:    markupFor(video.Inline, nil),
	}
	return c.sendMessage(ctx, "sendVideo", func(ctx context.Context) (*models.Message, error) {
		return c.api.SendVideo(ctx, params)
	})
}

// Forward implements transport.Sender.
func (c *Client) Forward(ctx context.Context, chatID int64, source transport.MessageRef) (transport.MessageRef, error) {
	params := &tgbot.ForwardMessageParams{
		ChatID:     chatID,
		FromChatID: source.ChatID,
		MessageID:  source.MessageID,
	}
	return c.sendMessage(ctx, "forwardMessage", func(ctx context.Context) (*models.Message, error) {
		return c.api.ForwardMessage(ctx, params)
	})
}

// EditText implements transport.Sender. Edits that change nothing succeed.
func (c *Client) EditText(ctx context.Context, ref transport.MessageRef, text transport.Text) error {
	params := &tgbot.EditMessageTextParams{
		ChatID:             ref.ChatID,
		MessageID:          ref.MessageID,
		Text:               text.Body,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
		ReplyMarkup:        markupFor(text.Inline, nil),
	}
	if text.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	err := c.call(ctx, "editMessageText", func(ctx context.Context) error {
		_, err := c.api.EditMessageText(ctx, params)
		return err
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotModified() {
		return nil
	}
	return err
}

// AnswerCallback implements transport.CallbackAnswerer.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	params := &tgbot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}
	if text != "" {
		params.Text = text
		params.ShowAlert = alert
	}
	return c.call(ctx, "answerCallbackQuery", func(ctx context.Context) error {
		_, err := c.api.AnswerCallbackQuery(ctx, params)
		return err
	})
}

// GetMembership implements transport.MembershipChecker.
func (c *Client) GetMembership(ctx context.Context, channelID, userID int64) (transport.MemberStatus, error) {
	var status transport.MemberStatus
	err := c.call(ctx, "getChatMember", func(ctx context.Context) error {
		member, err := c.api.GetChatMember(ctx, &tgbot.GetChatMemberParams{ChatID: channelID, UserID: userID})
		if err != nil {
			return err
		}
		status, _, err = memberOf(*member)
		return err
	})
	return status, err
}

// SetWebhook registers url for update delivery with the given secret token.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", func(ctx context.Context) error {
		_, err := c.api.SetWebhook(ctx, &tgbot.SetWebhookParams{
			URL:            url,
			AllowedUpdates: AllowedUpdates,
			SecretToken:    secret,
		})
		return err
	})
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", func(ctx context.Context) error {
		_, err := c.api.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{})
		return err
	})
}

func (c *Client) sendMessage(ctx context.Context, method string, send func(context.Context) (*models.Message, error)) (transport.MessageRef, error) {
	var ref transport.MessageRef
	err := c.call(ctx, method, func(ctx context.Context) error {
		msg, err := send(ctx)
		if err != nil {
			return err
		}
		ref = transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}
		return nil
	})
	return ref, err
}

// call runs one SDK request with a per-attempt timeout, retrying transient
// failures with the server's retry_after hint or exponential backoff.
func (c *Client) call(ctx context.Context, method string, do func(context.Context) error) error {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		err := do(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = classify(method, err)
		delay, retry := c.retryDelay(ctx, lastErr, attempt, attempts)
		if !retry {
			return lastErr
		}
		if err := c.sleeper(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Temporary() {
		return 0, false
	}
	if apiErr.RetryAfter > 0 {
		if apiErr.RetryAfter > c.retryMaxDelay {
			return 0, false
		}
		return apiErr.RetryAfter, true
	}
	return c.backoffDelay(attempt), true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay << (attempt - 1)
	if delay > c.retryMaxDelay || delay <= 0 {
		return c.retryMaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ transport.Transport = (*Client)(nil)
