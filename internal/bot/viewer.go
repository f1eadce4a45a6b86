package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/delivery"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

func (b *Bot) start(ctx context.Context, req *request) {
	if b.IsAdmin(req.user.ID) {
		b.send(ctx, req, transport.Text{Body: textAdminWelcome, Inline: adminInline()})
		return
	}
	welcome := b.setting(ctx, req, store.SettingWelcomeMessage)
	b.send(ctx, req, transport.Text{
		Body:  welcomeText(welcome, req.user.FirstName),
		HTML:  true,
		Reply: mainReplyKeyboard(),
	})
}

func (b *Bot) mainMenu(ctx context.Context, req *request) {
	if b.IsAdmin(req.user.ID) {
		b.show(ctx, req, transport.Text{Body: textAdminPanel, Inline: adminInline()})
		return
	}
	b.show(ctx, req, transport.Text{Body: textMainMenu, Inline: mainMenuInline()})
}

func (b *Bot) help(ctx context.Context, req *request) {
	text := transport.Text{Body: b.setting(ctx, req, store.SettingHelpMessage)}
	if text.Body == "" {
		text.Body = textFailure
	}
	if req.isCallback() {
		text.Inline = backInline("🔙 Bosh menyu", commands.MainMenu{})
	}
	b.show(ctx, req, text)
}

// search shows matching titles. A single match is delivered right away.
func (b *Bot) search(ctx context.Context, req *request, query string) {
	titles, err := b.store.Search(ctx, query, b.searchLimit)
	if err != nil {
		b.fail(ctx, req, "search failed", err)
		return
	}
	req.logger.Info("catalog searched", logging.String("query", query), logging.Int("results", len(titles)))
	switch len(titles) {
	case 0:
		b.send(ctx, req, transport.Text{Body: searchNotFoundText(query), HTML: true})
	case 1:
		b.sendAll(ctx, req, titles[0].Code)
	default:
		b.send(ctx, req, transport.Text{
			Body:   searchResultsText(query, titles),
			HTML:   true,
			Inline: titleListInline(titles, nil),
		})
	}
}

func (b *Bot) listTitles(ctx context.Context, req *request, page int) {
	total, err := b.store.CountTitles(ctx)
	if err != nil {
		b.fail(ctx, req, "count titles failed", err)
		return
	}
	if total == 0 {
		b.show(ctx, req, transport.Text{Body: textNoTitles})
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
	nav := pager(page, pages, func(p int) commands.Command { return commands.ListTitles{Page: p} })
	b.show(ctx, req, transport.Text{
		Body:   titleListText("📚 Barcha doramalar:", titles, offset),
		HTML:   true,
		Inline: titleListInline(titles, nav),
	})
}

func (b *Bot) listRecent(ctx context.Context, req *request) {
	titles, err := b.store.ListRecent(ctx, b.pageSize)
	if err != nil {
		b.fail(ctx, req, "list recent failed", err)
		return
	}
	if len(titles) == 0 {
		b.show(ctx, req, transport.Text{Body: textNoRecent})
		return
	}
	b.show(ctx, req, transport.Text{
		Body:   titleListText("🆕 So'ngi qo'shilgan doramalar:", titles, 0),
		HTML:   true,
		Inline: titleListInline(titles, nil),
	})
}

func (b *Bot) listPopular(ctx context.Context, req *request) {
	ranked, err := b.store.ListPopular(ctx, b.pageSize)
	if err != nil {
		b.fail(ctx, req, "list popular failed", err)
		return
	}
	titles := make([]store.TitleSummary, 0, len(ranked))
	for _, title := range ranked {
		if title.TotalViews > 0 {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 {
		b.show(ctx, req, transport.Text{Body: textNoPopular})
		return
	}
	b.show(ctx, req, transport.Text{Body: popularText(titles), HTML: true, Inline: titleListInline(titles, nil)})
}

func (b *Bot) randomTitle(ctx context.Context, req *request) {
	title, err := b.store.RandomTitle(ctx)
	if errors.Is(err, store.ErrNotFound) {
		b.send(ctx, req, transport.Text{Body: textEmptyCatalog})
		return
	}
	if err != nil {
		b.fail(ctx, req, "random title failed", err)
		return
	}
	b.sendAll(ctx, req, title.Code)
}

func (b *Bot) showTitle(ctx context.Context, req *request, code string) {
	title, err := b.store.GetTitle(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		b.show(ctx, req, transport.Text{Body: textTitleNotFound})
		return
	}
	if err != nil {
		b.fail(ctx, req, "load title failed", err)
		return
	}
	episodes, err := b.store.ListEpisodes(ctx, title.Code)
	if err != nil {
		b.fail(ctx, req, "list episodes failed", err)
		return
	}
	b.show(ctx, req, transport.Text{
		Body:   delivery.TitleCard(*title, len(episodes)) + "\n🎬 <b>Tanlang:</b>",
		HTML:   true,
		Inline: titleInline(title.Code, episodes),
	})
}

func (b *Bot) listEpisodes(ctx context.Context, req *request, code string, page int) {
	title, err := b.store.GetTitle(ctx, code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		b.fail(ctx, req, "load title failed", err)
		return
	}
	var episodes []store.Episode
	if title != nil {
		if episodes, err = b.store.ListEpisodes(ctx, title.Code); err != nil {
			b.fail(ctx, req, "list episodes failed", err)
			return
		}
	}
	if title == nil || len(episodes) == 0 {
		b.show(ctx, req, transport.Text{Body: textEpisodesEmpty})
		return
	}
	pages := pageCount(len(episodes), b.episodesPageSize)
	page = clampPage(page, pages)
	start := page * b.episodesPageSize
	end := min(start+b.episodesPageSize, len(episodes))
	b.show(ctx, req, transport.Text{
		Body:   episodesText(*title, len(episodes)),
		HTML:   true,
		Inline: episodesInline(title.Code, episodes[start:end], page, pages),
	})
}

// sendAll starts a batch delivery to the requesting chat. The callback is
// answered first since the batch outlives Telegram's answer window.
func (b *Bot) sendAll(ctx context.Context, req *request, code string) {
	b.ack(ctx, req, "", false)
	job := *req
	b.detach(ctx, func(ctx context.Context) { b.runBatch(ctx, &job, code) })
}

func (b *Bot) runBatch(ctx context.Context, req *request, code string) {
	result, err := b.delivery.SendAll(ctx, req.chatID, code)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.send(ctx, req, transport.Text{Body: textNoEpisodes})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		req.logger.Info("batch delivery cut short", logging.Int("sent", result.Sent), logging.Int("total", result.Total))
	case err != nil:
		b.fail(ctx, req, "batch delivery failed", err)
	default:
		req.logger.Info("batch delivery finished",
			logging.TitleCode(result.Code),
			logging.String(logging.FieldRunID, result.RunID),
			logging.Int("sent", result.Sent),
			logging.Int("failed", result.Failed),
			logging.Duration("elapsed", result.Duration),
		)
	}
}

func (b *Bot) watch(ctx context.Context, req *request, code string, index int) {
	err := b.delivery.SendEpisode(ctx, req.chatID, code, index)
	switch {
	case err == nil:
		b.notice(ctx, req, fmt.Sprintf("✅ %d-qism yuklandi", index), false)
	case errors.Is(err, store.ErrNotFound):
		b.notice(ctx, req, textEpisodeMissing, true)
	default:
		req.logger.Info("single episode not delivered", logging.Error(err))
		b.notice(ctx, req, textVideoFailed, true)
	}
}

func (b *Bot) checkSubscription(ctx context.Context, req *request) {
	unmet, err := b.gateway.Evaluate(ctx, req.user.ID)
	if err != nil {
		b.fail(ctx, req, "gate evaluation failed", err)
		return
	}
	if len(unmet) == 0 {
		b.show(ctx, req, transport.Text{Body: textSubscribed, Inline: mainMenuInline()})
		return
	}
	b.send(ctx, req, transport.Text{Body: subscriptionText(unmet), Inline: subscriptionInline(unmet)})
}

func (b *Bot) cancel(ctx context.Context, req *request) {
	if b.sessions.clear(req.user.ID) {
		b.send(ctx, req, transport.Text{Body: textCancelled})
		return
	}
	b.send(ctx, req, transport.Text{Body: textNothingPending})
}

// notice is a short status line: a toast for callbacks, a message otherwise.
func (b *Bot) notice(ctx context.Context, req *request, text string, alert bool) {
	if req.isCallback() {
		b.ack(ctx, req, text, alert)
		return
	}
	b.send(ctx, req, transport.Text{Body: text})
}

// setting reads a setting, logging and returning "" on failure.
func (b *Bot) setting(ctx context.Context, req *request, key string) string {
	value, err := b.store.GetSetting(ctx, key)
	if err != nil {
		logging.WarnWithContext(req.logger, "setting not loaded", "setting_read_failed",
			logging.String("key", key),
			logging.String(logging.FieldImpact, "reply sent without the configured text"),
			logging.Error(err),
		)
	}
	return value
}
