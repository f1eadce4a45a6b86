package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// request is one user interaction being served.
type request struct {
	user     transport.User
	chatID   int64
	message  *transport.Message
	callback *transport.CallbackQuery
	logger   *slog.Logger

	answered bool
}

func (r *request) isCallback() bool { return r.callback != nil }

func (b *Bot) onMessage(ctx context.Context, logger *slog.Logger, msg *transport.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Chat.Type == "channel" {
		return
	}
	req := &request{user: *msg.From, chatID: msg.Chat.ID, message: msg, logger: logger}
	b.touch(ctx, req)

	cmd, ok := b.route(ctx, req)
	if !ok {
		return
	}
	b.execute(ctx, req, cmd)
}

func (b *Bot) onCallback(ctx context.Context, logger *slog.Logger, cb *transport.CallbackQuery) {
	chatID := cb.From.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}
	req := &request{user: cb.From, chatID: chatID, callback: cb, logger: logger}
	defer b.ack(ctx, req, "", false)
	b.touch(ctx, req)

	cmd, err := commands.ParseCallback(cb.Data)
	if err != nil {
		logger.Debug("callback rejected", logging.String("data", cb.Data), logging.Error(err))
		return
	}
	b.execute(ctx, req, cmd)
}

// route applies the message dispatch rule. It returns false when the
// message was consumed or should be ignored.
func (b *Bot) route(ctx context.Context, req *request) (commands.Command, bool) {
	msg := req.message
	text := strings.TrimSpace(msg.Text)
	admin := b.IsAdmin(req.user.ID)

	if commands.IsSlash(text) {
		replyTo := 0
		if msg.ReplyTo != nil {
			replyTo = msg.ReplyTo.ID
		}
		cmd, err := commands.ParseSlash(text, replyTo)
		if err != nil {
			var usage *commands.UsageError
			if errors.As(err, &usage) && admin {
				b.send(ctx, req, transport.Text{Body: usage.Usage})
				return nil, false
			}
			req.logger.Debug("slash command rejected", logging.Error(err))
			return nil, false
		}
		return cmd, true
	}

	if text != "" && admin {
		if pending, ok := b.sessions.take(req.user.ID, sessionSettingInput); ok {
			b.saveSetting(ctx, req, pending.key, msg.Text)
			return nil, false
		}
	}
	if admin {
		if _, ok := b.sessions.take(req.user.ID, sessionBroadcast); ok {
			b.runBroadcast(ctx, req, msg.Ref())
			return nil, false
		}
		if msg.Video != nil {
			b.ingestVideo(ctx, req)
			return nil, false
		}
	}
	if text == "" {
		return nil, false
	}
	if cmd, ok := commands.ParseButton(text); ok {
		return cmd, true
	}
	return commands.Search{Query: text}, true
}

// execute runs a decoded command after the privilege and subscription checks.
func (b *Bot) execute(ctx context.Context, req *request, cmd commands.Command) {
	admin := b.IsAdmin(req.user.ID)
	if commands.Admin(cmd) && !admin {
		if req.isCallback() {
			b.ack(ctx, req, textAdminOnly, true)
			return
		}
		b.send(ctx, req, transport.Text{Body: textAdminOnly})
		return
	}
	if !admin && gated(cmd) && !b.requireSubscription(ctx, req) {
		return
	}

	switch c := cmd.(type) {
	case commands.Start:
		b.start(ctx, req)
	case commands.MainMenu:
		b.mainMenu(ctx, req)
	case commands.StartSearch:
		b.show(ctx, req, transport.Text{Body: textSearchPrompt, HTML: true})
	case commands.Search:
		b.search(ctx, req, c.Query)
	case commands.ListTitles:
		b.listTitles(ctx, req, c.Page)
	case commands.ListRecent:
		b.listRecent(ctx, req)
	case commands.ListPopular:
		b.listPopular(ctx, req)
	case commands.RandomTitle:
		b.randomTitle(ctx, req)
	case commands.Help:
		b.help(ctx, req)
	case commands.ShowTitle:
		b.showTitle(ctx, req, c.Code)
	case commands.ListEpisodes:
		b.listEpisodes(ctx, req, c.Code, c.Page)
	case commands.SendAll:
		b.sendAll(ctx, req, c.Code)
	case commands.Watch:
		b.watch(ctx, req, c.Code, c.Episode)
	case commands.CheckSubscription:
		b.checkSubscription(ctx, req)
	case commands.Noop:
	case commands.Cancel:
		b.cancel(ctx, req)
	case commands.AdminMenu:
		b.show(ctx, req, transport.Text{Body: textAdminPanel, Inline: adminInline()})
	case commands.AdminStats, commands.Stats:
		b.adminStats(ctx, req)
	case commands.AdminTitles:
		b.adminTitles(ctx, req, c.Page, false)
	case commands.AdminDeleteList:
		b.adminTitles(ctx, req, c.Page, true)
	case commands.AdminTitleInfo:
		b.adminTitleInfo(ctx, req, c.Code)
	case commands.AdminDeleteAsk:
		b.adminDeleteAsk(ctx, req, c.Code)
	case commands.AdminDeleteTitle:
		b.deleteTitle(ctx, req, c.Code)
	case commands.DeleteTitle:
		b.deleteTitle(ctx, req, c.Code)
	case commands.AdminChannels:
		b.adminChannels(ctx, req)
	case commands.AddChannel:
		b.addChannel(ctx, req, c)
	case commands.DeleteChannel:
		b.deleteChannel(ctx, req, c.ID)
	case commands.AdminRequests:
		b.adminRequests(ctx, req, c.Page)
	case commands.AdminRequestInfo:
		b.adminRequestInfo(ctx, req, c.UserID, c.ChannelID)
	case commands.AdminApprove:
		b.approve(ctx, req, c.UserID, c.ChannelID)
	case commands.AdminSettings:
		b.adminSettings(ctx, req)
	case commands.AdminEditSetting:
		b.editSetting(ctx, req, c.Key)
	case commands.AdminBroadcastHelp:
		b.sessions.open(req.user.ID, sessionBroadcast, "")
		b.show(ctx, req, transport.Text{Body: textBroadcastHelp, HTML: true, Inline: backInline("🔙 Orqaga", commands.AdminMenu{})})
	case commands.Broadcast:
		b.broadcastCommand(ctx, req, c.ReplyTo)
	default:
		req.logger.Warn("command has no handler",
			logging.String(logging.FieldEventType, "unhandled_command"),
			logging.String("command", commandName(cmd)),
		)
	}
}

// gated reports whether a viewer must pass the subscription gate first.
func gated(cmd commands.Command) bool {
	switch cmd.(type) {
	case commands.CheckSubscription, commands.Noop, commands.Cancel:
		return false
	default:
		return true
	}
}

func commandName(cmd commands.Command) string {
	if cmd == nil {
		return "<nil>"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", cmd), "commands.")
}

func (b *Bot) touch(ctx context.Context, req *request) {
	profile := store.UserProfile{
		ID:        req.user.ID,
		Username:  req.user.Username,
		FirstName: req.user.FirstName,
		LastName:  req.user.LastName,
	}
	if err := b.store.TouchUser(ctx, profile); err != nil {
		logging.WarnWithContext(req.logger, "user activity not recorded", "touch_user_failed",
			logging.String(logging.FieldImpact, "user missing from roster and activity stats"),
			logging.Error(err),
		)
	}
}

// requireSubscription applies the access gate and shows the subscription
// prompt on failure. A gate evaluation error counts as not granted.
func (b *Bot) requireSubscription(ctx context.Context, req *request) bool {
	unmet, err := b.gateway.Evaluate(ctx, req.user.ID)
	if err != nil {
		b.fail(ctx, req, "gate evaluation failed", err)
		return false
	}
	if len(unmet) == 0 {
		return true
	}
	b.send(ctx, req, transport.Text{Body: subscriptionText(unmet), Inline: subscriptionInline(unmet)})
	return false
}

// show renders a screen: callbacks edit the pressed message in place and
// messages get a fresh reply.
func (b *Bot) show(ctx context.Context, req *request, text transport.Text) {
	if req.callback != nil && req.callback.Message != nil && len(text.Reply) == 0 {
		err := b.transport.EditText(ctx, req.callback.Message.Ref(), text)
		if err == nil {
			return
		}
		req.logger.Debug("edit failed; sending new message", logging.Error(err))
	}
	b.send(ctx, req, text)
}

func (b *Bot) send(ctx context.Context, req *request, text transport.Text) {
	if _, err := b.transport.SendText(ctx, req.chatID, text); err != nil {
		logging.WarnWithContext(req.logger, "reply not delivered", "reply_failed",
			logging.Int64(logging.FieldChatID, req.chatID),
			logging.String(logging.FieldImpact, "user saw no response"),
			logging.Error(err),
		)
	}
}

// ack answers the callback once. Later calls are no-ops.
func (b *Bot) ack(ctx context.Context, req *request, text string, alert bool) {
	if req.callback == nil || req.answered {
		return
	}
	req.answered = true
	if err := b.transport.AnswerCallback(ctx, req.callback.ID, text, alert); err != nil {
		req.logger.Debug("callback answer failed", logging.Error(err))
	}
}

// fail logs err and tells the user in the terms its kind allows.
func (b *Bot) fail(ctx context.Context, req *request, msg string, err error) {
	text := textFailure
	switch store.KindOf(err) {
	case store.KindNotFound:
		text = textTitleNotFound
		req.logger.Info(msg, logging.Error(err))
	case store.KindValidation:
		text = "❌ " + err.Error()
		req.logger.Info(msg, logging.Error(err))
	default:
		logging.ErrorWithContext(req.logger, msg, "handler_failed",
			logging.String("error_kind", store.KindOf(err)),
			logging.Error(err),
		)
		if pubErr := b.notifier.Publish(ctx, notifications.EventError, notifications.Payload{"context": msg, "error": err}); pubErr != nil {
			req.logger.Debug("error notification failed", logging.Error(pubErr))
		}
	}
	if req.isCallback() {
		b.ack(ctx, req, text, true)
		return
	}
	b.send(ctx, req, transport.Text{Body: text})
}
