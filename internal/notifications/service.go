package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hik1komori/life-dorama-bot/internal/config"
)

const userAgent = "doramabot/1.0"

// Event identifies an operator-facing occurrence.
type Event string

const (
	EventBotStarted         Event = "bot_started"
	EventJoinRequest        Event = "join_request"
	EventBroadcastCompleted Event = "broadcast_completed"
	EventError              Event = "error"
	EventTest               Event = "test"
)

// Payload carries event fields. Values are formatted with fmt.Sprint.
type Payload map[string]any

// Service defines the notification surface exposed to bot components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventBotStarted:         true,
			EventJoinRequest:        cfg.Notifications.JoinRequests,
			EventBroadcastCompleted: cfg.Notifications.Broadcasts,
			EventError:              cfg.Notifications.Errors,
			EventTest:               true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, fields Payload) (payload, bool) {
	switch event {
	case EventBotStarted:
		return payload{
			title:    "Doramabot - Started",
			message:  fmt.Sprintf("🚀 Bot started (run %s)", fields.text("runID")),
			tags:     []string{"doramabot", "started"},
			priority: "low",
		}, true
	case EventJoinRequest:
		return payload{
			title: "Doramabot - Join Request",
			message: fmt.Sprintf("🆕 %s (@%s, id %s) asked to join %s",
				fields.textOr("user", "unknown"),
				fields.textOr("username", "noma'lum"),
				fields.text("userID"),
				fields.textOr("channel", fields.text("channelID"))),
			tags: []string{"doramabot", "join", "request"},
		}, true
	case EventBroadcastCompleted:
		title := "Doramabot - Broadcast Complete"
		if fields.text("failed") != "0" && fields.text("failed") != "" {
			title = "Doramabot - Broadcast Complete (with errors)"
		}
		return payload{
			title: title,
			message: fmt.Sprintf("📢 Broadcast finished: %s/%s delivered, %s failed (%s%%)",
				fields.text("successful"), fields.text("total"), fields.textOr("failed", "0"), fields.text("percent")),
			tags: []string{"doramabot", "broadcast", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := fields.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(fields.textOr("error", "unknown"))
		return payload{
			title:    "Doramabot - Error",
			message:  builder.String(),
			tags:     []string{"doramabot", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Doramabot - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"doramabot", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	if err, ok := value.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (p Payload) textOr(key, fallback string) string {
	if value := p.text(key); value != "" {
		return value
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NewNoop returns a Service that discards every event.
func NewNoop() Service { return noopService{} }

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
