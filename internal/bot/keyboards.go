package bot

import (
	"fmt"
	"strconv"

	"github.com/hik1komori/life-dorama-bot/internal/commands"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// titleCardEpisodes is how many episode buttons the title card shows
// before linking to the paginated picker.
const titleCardEpisodes = 10

func button(text string, cmd commands.Command) transport.Button {
	return transport.Button{Text: text, Data: commands.MustEncode(cmd)}
}

func single(text string, cmd commands.Command) []transport.Button {
	return []transport.Button{button(text, cmd)}
}

func mainReplyKeyboard() transport.ReplyKeyboard {
	return transport.ReplyKeyboard(commands.MainKeyboard())
}

func mainMenuInline() transport.InlineKeyboard {
	return transport.InlineKeyboard{
		single(commands.ButtonSearch, commands.StartSearch{}),
		single(commands.ButtonAll, commands.ListTitles{}),
		single(commands.ButtonRecent, commands.ListRecent{}),
		single(commands.ButtonPopular, commands.ListPopular{}),
		single("⭐ Tasodifiy dorama", commands.RandomTitle{}),
		single(commands.ButtonHelp, commands.Help{}),
	}
}

func adminInline() transport.InlineKeyboard {
	return transport.InlineKeyboard{
		single("📊 Statistika", commands.AdminStats{}),
		single("🎬 Doramalar", commands.AdminTitles{}),
		single("🗑️ O'chirish", commands.AdminDeleteList{}),
		single("📢 Kanallar", commands.AdminChannels{}),
		single("⚙️ Sozlamalar", commands.AdminSettings{}),
		single("🆕 So'rovlar", commands.AdminRequests{}),
		single("📢 Xabar yuborish", commands.AdminBroadcastHelp{}),
		single("🔙 Bosh menyu", commands.MainMenu{}),
	}
}

func settingsInline() transport.InlineKeyboard {
	return transport.InlineKeyboard{
		single("👋 Xush kelish xabarini o'zgartirish", commands.AdminEditSetting{Key: store.SettingWelcomeMessage}),
		single("ℹ️ Yordam xabarini o'zgartirish", commands.AdminEditSetting{Key: store.SettingHelpMessage}),
		single("📁 Arxiv kanali", commands.AdminEditSetting{Key: store.SettingArchiveChannel}),
		single("🔙 Orqaga", commands.AdminMenu{}),
	}
}

func backInline(text string, cmd commands.Command) transport.InlineKeyboard {
	return transport.InlineKeyboard{single(text, cmd)}
}

func subscriptionInline(unmet []store.Channel) transport.InlineKeyboard {
	rows := make(transport.InlineKeyboard, 0, len(unmet)+1)
	for _, channel := range unmet {
		url := channel.JoinURL()
		if url == "" {
			continue
		}
		rows = append(rows, []transport.Button{{Text: channelBullet(channel), URL: url}})
	}
	return append(rows, single("✅ Tekshirish", commands.CheckSubscription{}))
}

// pager renders "⬅️ n/m ➡️". It returns nil for a single page.
func pager(page, pages int, at func(int) commands.Command) []transport.Button {
	if pages <= 1 {
		return nil
	}
	row := make([]transport.Button, 0, 3)
	if page > 0 {
		row = append(row, button("⬅️", at(page-1)))
	}
	row = append(row, button(fmt.Sprintf("%d/%d", page+1, pages), commands.Noop{}))
	if page < pages-1 {
		row = append(row, button("➡️", at(page+1)))
	}
	return row
}

func titleListInline(titles []store.TitleSummary, nav []transport.Button) transport.InlineKeyboard {
	rows := make(transport.InlineKeyboard, 0, len(titles)+2)
	for _, title := range titles {
		label := "📺 " + title.Name
		if title.ReleaseYear > 0 {
			label += fmt.Sprintf(" (%d)", title.ReleaseYear)
		}
		if title.EpisodeCount > 0 {
			label += fmt.Sprintf(" - %dqism", title.EpisodeCount)
		}
		rows = append(rows, single(label, commands.ShowTitle{Code: title.Code}))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return append(rows, single("🔙 Bosh menyu", commands.MainMenu{}))
}

func episodeRows(code string, episodes []store.Episode, perRow int) transport.InlineKeyboard {
	var rows transport.InlineKeyboard
	for start := 0; start < len(episodes); start += perRow {
		end := min(start+perRow, len(episodes))
		row := make([]transport.Button, 0, end-start)
		for _, episode := range episodes[start:end] {
			row = append(row, button(strconv.Itoa(episode.Index), commands.Watch{Code: code, Episode: episode.Index}))
		}
		rows = append(rows, row)
	}
	return rows
}

func titleInline(code string, episodes []store.Episode) transport.InlineKeyboard {
	shown := episodes[:min(titleCardEpisodes, len(episodes))]
	rows := episodeRows(code, shown, 5)
	if len(episodes) > titleCardEpisodes {
		rows = append(rows, single("📋 Barcha qismlar", commands.ListEpisodes{Code: code}))
	}
	if len(episodes) > 0 {
		rows = append(rows, single("🎬 Barcha qismlarni yuborish", commands.SendAll{Code: code}))
	}
	return append(rows, single("🔙 Bosh menyu", commands.MainMenu{}))
}

func episodesInline(code string, episodes []store.Episode, page, pages int) transport.InlineKeyboard {
	rows := episodeRows(code, episodes, 5)
	if nav := pager(page, pages, func(p int) commands.Command { return commands.ListEpisodes{Code: code, Page: p} }); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, single("🎬 Barcha qismlarni yuborish", commands.SendAll{Code: code}))
	return append(rows, single("🔙 Orqaga", commands.ShowTitle{Code: code}))
}

func adminTitlesInline(titles []store.TitleSummary, page, pages int, deleteMode bool) transport.InlineKeyboard {
	rows := make(transport.InlineKeyboard, 0, len(titles)+2)
	for _, title := range titles {
		info := button(fmt.Sprintf("📺 %s (%dq)", title.Name, title.EpisodeCount), commands.AdminTitleInfo{Code: title.Code})
		if deleteMode {
			rows = append(rows, []transport.Button{info, button("❌", commands.AdminDeleteAsk{Code: title.Code})})
			continue
		}
		rows = append(rows, []transport.Button{info})
	}
	at := func(p int) commands.Command { return commands.AdminTitles{Page: p} }
	if deleteMode {
		at = func(p int) commands.Command { return commands.AdminDeleteList{Page: p} }
	}
	if nav := pager(page, pages, at); nav != nil {
		rows = append(rows, nav)
	}
	action := button("🗑️ O'chirish", commands.AdminDeleteList{})
	if deleteMode {
		action = button("📋 Ko'rish", commands.AdminTitles{})
	}
	return append(rows, []transport.Button{action, button("🔙 Admin", commands.AdminMenu{})})
}

func adminTitleInline(code string) transport.InlineKeyboard {
	return transport.InlineKeyboard{
		single("🗑️ O'chirish", commands.AdminDeleteAsk{Code: code}),
		single("🔙 Doramalar ro'yxati", commands.AdminTitles{}),
	}
}

func deleteConfirmInline(code string) transport.InlineKeyboard {
	return transport.InlineKeyboard{
		{button("✅ HA", commands.AdminDeleteTitle{Code: code}), button("❌ BEKOR", commands.AdminDeleteList{})},
		single("🔙 Admin", commands.AdminMenu{}),
	}
}

func requestsInline(rows []requestRow, page, pages int) transport.InlineKeyboard {
	kb := make(transport.InlineKeyboard, 0, len(rows)+2)
	for _, row := range rows {
		id := commands.AdminRequestInfo{UserID: row.request.UserID, ChannelID: row.request.ChannelID}
		kb = append(kb, []transport.Button{
			button(truncate(row.userLabel()+" - "+row.channelLabel(), 40), id),
			button("✅", commands.AdminApprove{UserID: row.request.UserID, ChannelID: row.request.ChannelID}),
		})
	}
	if nav := pager(page, pages, func(p int) commands.Command { return commands.AdminRequests{Page: p} }); nav != nil {
		kb = append(kb, nav)
	}
	return append(kb, single("🔙 Admin", commands.AdminMenu{}))
}

func requestInline(req store.AccessRequest) transport.InlineKeyboard {
	rows := transport.InlineKeyboard{}
	if req.Status != store.RequestApproved {
		rows = append(rows, single("✅ Tasdiqlash", commands.AdminApprove{UserID: req.UserID, ChannelID: req.ChannelID}))
	}
	return append(rows, single("🔙 So'rovlar", commands.AdminRequests{}))
}

// pageCount returns the number of pages for total items, never less than one.
func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func clampPage(page, pages int) int {
	if page < 0 {
		return 0
	}
	if page >= pages {
		return pages - 1
	}
	return page
}
