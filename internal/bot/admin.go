package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const popularInStats = 5

// requestRow is a pending ledger row with its user and channel resolved
// for display. Either may be nil when the row outlived them.
type requestRow struct {
	request store.AccessRequest
	user    *store.User
	channel *store.Channel
}

func (r requestRow) userLabel() string {
	if r.user == nil {
		return fmt.Sprintf("user %d", r.request.UserID)
	}
	if r.user.Username != "" {
		return "@" + r.user.Username
	}
	return r.user.DisplayName()
}

func (r requestRow) channelLabel() string {
	if r.channel == nil {
		return fmt.Sprintf("Kanal %d", r.request.ChannelID)
	}
	return r.channel.Label()
}

func (b *Bot) adminStats(ctx context.Context, req *request) {
	stats, err := b.store.Stats(ctx, popularInStats)
	if err != nil {
		b.fail(ctx, req, "stats failed", err)
		return
	}
	text := transport.Text{Body: statsText(stats, len(b.adminIDs)), HTML: true}
	if req.isCallback() {
		text.Inline = backInline("🔙 Orqaga", commands.AdminMenu{})
	}
	b.show(ctx, req, text)
}

func (b *Bot) adminTitles(ctx context.Context, req *request, page int, deleteMode bool) {
	total, err := b.store.CountTitles(ctx)
	if err != nil {
		b.fail(ctx, req, "count titles failed", err)
		return
	}
	if total == 0 {
		b.show(ctx, req, transport.Text{Body: textAdminNoTitles, Inline: backInline("🔙 Admin", commands.AdminMenu{})})
		return
	}
	pages := pageCount(total, b.pageSize)
	page = clampPage(page, pages)
	offset := page * b.pageSize
	titles, err := b.store.ListTitles(ctx, b.pageSize, offset)
	if err != nil {
		b.fail(ctx, req, "list titles failed", err)
		return
	}
	b.show(ctx, req, transport.Text{
		Body:   adminTitlesText(titles, page, pages, total, offset, deleteMode),
		HTML:   true,
		Inline: adminTitlesInline(titles, page, pages, deleteMode),
	})
}

// loadTitle resolves a title with its episode count. A missing title is
// reported to the admin and yields ok=false.
func (b *Bot) loadTitle(ctx context.Context, req *request, code string) (*store.Title, int, bool) {
	title, err := b.store.GetTitle(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		b.notice(ctx, req, textTitleNotFound, true)
		return nil, 0, false
	}
	if err != nil {
		b.fail(ctx, req, "load title failed", err)
		return nil, 0, false
	}
	episodes, err := b.store.ListEpisodes(ctx, title.Code)
	if err != nil {
		b.fail(ctx, req, "list episodes failed", err)
		return nil, 0, false
	}
	return title, len(episodes), true
}

func (b *Bot) adminTitleInfo(ctx context.Context, req *request, code string) {
	title, episodes, ok := b.loadTitle(ctx, req, code)
	if !ok {
		return
	}
	b.show(ctx, req, transport.Text{Body: adminTitleText(*title, episodes), HTML: true, Inline: adminTitleInline(title.Code)})
}

func (b *Bot) adminDeleteAsk(ctx context.Context, req *request, code string) {
	title, episodes, ok := b.loadTitle(ctx, req, code)
	if !ok {
		return
	}
	b.show(ctx, req, transport.Text{Body: deleteConfirmText(*title, episodes), HTML: true, Inline: deleteConfirmInline(title.Code)})
}

func (b *Bot) deleteTitle(ctx context.Context, req *request, code string) {
	err := b.store.DeleteTitle(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		b.notice(ctx, req, textTitleNotFound, true)
		return
	}
	if err != nil {
		b.fail(ctx, req, "delete title failed", err)
		return
	}
	req.logger.Info("title deleted", logging.TitleCode(code))
	text := transport.Text{Body: titleDeletedText(code), HTML: true}
	if req.isCallback() {
		text.Inline = backInline("🔙 Doramalar ro'yxati", commands.AdminDeleteList{})
	}
	b.show(ctx, req, text)
}

func (b *Bot) adminChannels(ctx context.Context, req *request) {
	channels, err := b.store.ListChannels(ctx, false)
	if err != nil {
		b.fail(ctx, req, "list channels failed", err)
		return
	}
	b.show(ctx, req, transport.Text{Body: channelsText(channels), HTML: true, Inline: backInline("🔙 Orqaga", commands.AdminMenu{})})
}

func (b *Bot) addChannel(ctx context.Context, req *request, cmd commands.AddChannel) {
	channel, err := b.store.AddChannel(ctx, store.Channel{
		ID:         cmd.ID,
		Username:   cmd.Username,
		Title:      cmd.Title,
		InviteLink: cmd.InviteLink,
		IsPrivate:  cmd.Private,
	})
	if err != nil {
		b.fail(ctx, req, "add channel failed", err)
		return
	}
	req.logger.Info("gate channel registered",
		logging.ChannelID(channel.ID),
		logging.Bool("private", channel.IsPrivate),
	)
	b.send(ctx, req, transport.Text{Body: channelAddedText(*channel), HTML: true})
}

func (b *Bot) deleteChannel(ctx context.Context, req *request, id int64) {
	err := b.store.DeleteChannel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		b.send(ctx, req, transport.Text{Body: "❌ Kanal topilmadi"})
		return
	}
	if err != nil {
		b.fail(ctx, req, "delete channel failed", err)
		return
	}
	req.logger.Info("gate channel removed", logging.ChannelID(id))
	b.send(ctx, req, transport.Text{Body: textChannelDeleted})
}

func (b *Bot) resolveRequest(ctx context.Context, req store.AccessRequest) requestRow {
	row := requestRow{request: req}
	if user, err := b.store.GetUser(ctx, req.UserID); err == nil {
		row.user = user
	}
	if channel, err := b.store.GetChannel(ctx, req.ChannelID); err == nil {
		row.channel = channel
	}
	return row
}

func (b *Bot) adminRequests(ctx context.Context, req *request, page int) {
	pending, err := b.store.ListRequests(ctx, store.RequestPending)
	if err != nil {
		b.fail(ctx, req, "list requests failed", err)
		return
	}
	pages := pageCount(len(pending), b.pageSize)
	page = clampPage(page, pages)
	start := min(page*b.pageSize, len(pending))
	end := min(start+b.pageSize, len(pending))
	rows := make([]requestRow, 0, end-start)
	for _, item := range pending[start:end] {
		rows = append(rows, b.resolveRequest(ctx, item))
	}
	b.show(ctx, req, transport.Text{Body: requestsText(len(pending)), HTML: true, Inline: requestsInline(rows, page, pages)})
}

func (b *Bot) findRequest(ctx context.Context, req *request, userID, channelID int64) (requestRow, bool) {
	all, err := b.store.ListRequests(ctx)
	if err != nil {
		b.fail(ctx, req, "list requests failed", err)
		return requestRow{}, false
	}
	for _, item := range all {
		if item.UserID == userID && item.ChannelID == channelID {
			return b.resolveRequest(ctx, item), true
		}
	}
	b.notice(ctx, req, textRequestGone, true)
	return requestRow{}, false
}

func (b *Bot) adminRequestInfo(ctx context.Context, req *request, userID, channelID int64) {
	row, ok := b.findRequest(ctx, req, userID, channelID)
	if !ok {
		return
	}
	b.show(ctx, req, transport.Text{Body: requestText(row), HTML: true, Inline: requestInline(row.request)})
}

func (b *Bot) approve(ctx context.Context, req *request, userID, channelID int64) {
	outcome, err := b.ledger.Approve(ctx, userID, channelID)
	if err != nil {
		b.fail(ctx, req, "manual approval failed", err)
		return
	}
	if !outcome.Applied {
		b.notice(ctx, req, textRequestGone, true)
		return
	}
	row := b.resolveRequest(ctx, store.AccessRequest{UserID: userID, ChannelID: channelID, Status: outcome.To})
	b.notice(ctx, req, "✅ Tasdiqlandi", false)
	b.show(ctx, req, transport.Text{Body: approvedText(row), HTML: true, Inline: backInline("🔙 So'rovlar", commands.AdminRequests{})})
}

func (b *Bot) adminSettings(ctx context.Context, req *request) {
	settings, err := b.store.Settings(ctx)
	if err != nil {
		b.fail(ctx, req, "load settings failed", err)
		return
	}
	b.show(ctx, req, transport.Text{Body: settingsText(settings, len(b.adminIDs)), HTML: true, Inline: settingsInline()})
}

func (b *Bot) editSetting(ctx context.Context, req *request, key string) {
	prompt, ok := settingPrompts[key]
	if !ok {
		b.notice(ctx, req, "❌ Noma'lum sozlama", true)
		return
	}
	b.sessions.open(req.user.ID, sessionSettingInput, key)
	b.show(ctx, req, transport.Text{
		Body:   prompt + "\n\nBekor qilish: /cancel",
		HTML:   true,
		Inline: backInline("🔙 Orqaga", commands.AdminSettings{}),
	})
}

func (b *Bot) saveSetting(ctx context.Context, req *request, key, value string) {
	value = strings.TrimSpace(value)
	if key == store.SettingArchiveChannel && value != "" {
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			b.sessions.open(req.user.ID, sessionSettingInput, key)
			b.send(ctx, req, transport.Text{Body: textChannelIDNaN})
			return
		}
	}
	if err := b.store.SetSetting(ctx, key, value); err != nil {
		b.fail(ctx, req, "save setting failed", err)
		return
	}
	req.logger.Info("setting updated", logging.String("key", key))
	b.send(ctx, req, transport.Text{Body: settingSaved[key], Inline: adminInline()})
}

// broadcastCommand handles /broadcast. Without a replied-to message it
// opens a broadcast session instead.
func (b *Bot) broadcastCommand(ctx context.Context, req *request, replyTo int) {
	if replyTo == 0 {
		b.sessions.open(req.user.ID, sessionBroadcast, "")
		b.send(ctx, req, transport.Text{Body: textBroadcastHelp, HTML: true})
		return
	}
	b.runBroadcast(ctx, req, transport.MessageRef{ChatID: req.chatID, MessageID: replyTo})
}

func (b *Bot) runBroadcast(ctx context.Context, req *request, source transport.MessageRef) {
	job := *req
	b.detach(ctx, func(ctx context.Context) { b.broadcastFrom(ctx, &job, source) })
}

func (b *Bot) broadcastFrom(ctx context.Context, req *request, source transport.MessageRef) {
	report, err := b.broadcasts.Broadcast(ctx, broadcast.Request{OperatorChat: req.chatID, Source: source})
	switch {
	case errors.Is(err, broadcast.ErrNoRecipients):
		b.send(ctx, req, transport.Text{Body: broadcast.NoRecipientsText})
	case errors.Is(err, broadcast.ErrBroadcastInProgress):
		b.send(ctx, req, transport.Text{Body: broadcast.InProgressText})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		req.logger.Info("broadcast cut short",
			logging.Int("successful", report.Successful),
			logging.Int("failed", report.Failed),
		)
	case err != nil:
		b.fail(ctx, req, "broadcast failed", err)
	}
}
