package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

const (
	textAdminWelcome   = "👨‍💻 Admin paneliga xush kelibsiz!"
	textAdminPanel     = "👨‍💻 Admin paneli:"
	textMainMenu       = "Bosh menyu:"
	textSearchPrompt   = "🔍 Dorama nomini yoki kodini kiriting:\n\nMisol: <code>Yulduzlar</code> yoki <code>YL2024</code>"
	textAdminOnly      = "❌ Bu komanda faqat adminlar uchun!"
	textTitleNotFound  = "❌ Dorama topilmadi"
	textNoEpisodes     = "❌ Dorama yoki qismlar topilmadi"
	textEpisodesEmpty  = "❌ Bu dorama uchun qismlar topilmadi"
	textNoTitles       = "📚 Hozircha doramalar mavjud emas"
	textNoRecent       = "🆕 Hozircha yangi doramalar yo'q"
	textNoPopular      = "📊 Hozircha mashhur doramalar yo'q"
	textEmptyCatalog   = "❌ Hozircha doramalar mavjud emas"
	textAdminNoTitles  = "📭 Hozircha doramalar mavjud emas"
	textSubscribed     = "✅ Ajoyib! Endi siz botdan foydalanishingiz mumkin."
	textFailure        = "❌ Xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko'ring."
	textEpisodeMissing = "❌ Qism topilmadi"
	textVideoFailed    = "❌ Video yuborishda xato"
	textCancelled      = "✅ Bekor qilindi."
	textNothingPending = "ℹ️ Bekor qilinadigan amal yo'q."
	textChannelIDNaN   = "❌ Kanal ID raqam bo'lishi kerak"
	textChannelDeleted = "✅ Kanal o'chirildi!"
	textRequestGone    = "❌ So'rov topilmadi"

	textBroadcastHelp = "📢 <b>Xabar yuborish (Broadcast)</b>\n\n" +
		"Barcha foydalanuvchilarga xabar yuborish uchun:\n\n" +
		"1. Xabaringizni yuboring (text, rasm, video)\n" +
		"2. Shu xabarga javoban /broadcast buyrug'ini yozing\n\n" +
		"Yoki hozir yuboradigan keyingi xabaringiz barcha foydalanuvchilarga yuboriladi. Bekor qilish: /cancel"

	textIngestNoCode    = "❌ Izohda #KOD formatida dorama kodini ko'rsating"
	textIngestNoEpisode = "❌ Izohda #seria_1 formatida seriya raqamini ko'rsating"
	textIngestNoVideo   = "❌ Xabar video faylni o'z ichiga olmaydi"
	textIngestFailed    = "❌ Bazaga qo'shishda xato"
)

var settingPrompts = map[string]string{
	store.SettingWelcomeMessage: "👋 <b>Yangi xush kelish xabarini kiriting:</b>\n\nBu xabar har bir foydalanuvchi /start ni bosganda ko'radi.",
	store.SettingHelpMessage:    "ℹ️ <b>Yangi yordam xabarini kiriting:</b>\n\nBu xabar foydalanuvchi Yordam bo'limini tanlaganda ko'radi.",
	store.SettingArchiveChannel: "📁 <b>Yangi arxiv kanal ID sini kiriting:</b>\n\nBu kanalga barcha yangi qo'shilgan videolar saqlanadi.",
}

var settingSaved = map[string]string{
	store.SettingWelcomeMessage: "✅ Xush kelish xabari muvaffaqiyatli o'zgartirildi!",
	store.SettingHelpMessage:    "✅ Yordam xabari muvaffaqiyatli o'zgartirildi!",
	store.SettingArchiveChannel: "✅ Arxiv kanali muvaffaqiyatli o'zgartirildi!",
}

func esc(s string) string { return html.EscapeString(s) }

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func welcomeText(welcome, firstName string) string {
	if firstName == "" {
		firstName = "do'st"
	}
	return fmt.Sprintf("%s\n\nSalom, %s! Kerakli bo'limni tanlang:", esc(welcome), esc(firstName))
}

func channelBullet(channel store.Channel) string {
	if channel.IsPrivate {
		return "🔒 " + channel.Label() + " (Maxfiy kanal - ariza qoldiring)"
	}
	return "📢 " + channel.Label()
}

func subscriptionText(unmet []store.Channel) string {
	var b strings.Builder
	b.WriteString("📢 Botdan foydalanish uchun quyidagi kanallarga obuna bo'ling:\n\n")
	for _, channel := range unmet {
		b.WriteString("• " + esc(channelBullet(channel)) + "\n")
	}
	b.WriteString("\nObuna bo'lgachingiz yoki ariza qoldirgachingiz «✅ Tekshirish» tugmasini bosing.")
	return b.String()
}

func titleLine(n int, title store.TitleSummary) string {
	line := fmt.Sprintf("%d. %s", n, esc(title.Name))
	if title.ReleaseYear > 0 {
		line += fmt.Sprintf(" (%d)", title.ReleaseYear)
	}
	if title.EpisodeCount > 0 {
		line += fmt.Sprintf(" - %d qism", title.EpisodeCount)
	}
	return line + "\n"
}

func titleListText(header string, titles []store.TitleSummary, offset int) string {
	var b strings.Builder
	b.WriteString(header + "\n\n")
	for i, title := range titles {
		b.WriteString(titleLine(offset+i+1, title))
	}
	return b.String()
}

func searchNotFoundText(query string) string {
	return fmt.Sprintf("❌ '%s' bo'yicha doramalar topilmadi\n\nBoshqa nom yoki kod bilan urunib ko'ring.", esc(query))
}

func searchResultsText(query string, titles []store.TitleSummary) string {
	return titleListText(fmt.Sprintf("🔍 '%s' bo'yicha topilgan doramalar (%d ta):", esc(query), len(titles)), titles, 0)
}

func popularText(titles []store.TitleSummary) string {
	var b strings.Builder
	b.WriteString("📊 Mashhur doramalar:\n\n")
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %s - %d ko'rish\n", i+1, esc(title.Name), title.TotalViews)
	}
	return b.String()
}

func episodesText(title store.Title, total int) string {
	return fmt.Sprintf("📺 %s\n\n📋 Barcha qismlar (%d ta):\n\nKerakli qismni tanlang yoki barchasini yuborish tugmasini bosing:",
		esc(title.Name), total)
}

func statsText(stats *store.Stats, admins int) string {
	var b strings.Builder
	b.WriteString("📊 <b>Admin statistikasi:</b>\n\n")
	fmt.Fprintf(&b, "🎬 <b>Doramalar:</b> %d ta\n", stats.Titles)
	fmt.Fprintf(&b, "📺 <b>Qismlar:</b> %d ta\n", stats.Episodes)
	fmt.Fprintf(&b, "👥 <b>Foydalanuvchilar:</b> %d ta\n", stats.Users)
	fmt.Fprintf(&b, "📈 <b>Faol foydalanuvchilar (30 kun):</b> %d ta\n", stats.ActiveMonth)
	fmt.Fprintf(&b, "📈 <b>Kunlik aktiv:</b> %d ta\n", stats.ActiveToday)
	fmt.Fprintf(&b, "🆕 <b>Kutilayotgan so'rovlar:</b> %d ta\n", stats.PendingRequests)
	fmt.Fprintf(&b, "👁️ <b>Jami ko'rishlar:</b> %d ta\n", stats.TotalViews)
	fmt.Fprintf(&b, "👨‍💻 <b>Adminlar:</b> %d ta\n\n", admins)
	b.WriteString("🔥 <b>Eng mashhur doramalar:</b>\n")
	for i, title := range stats.Popular {
		fmt.Fprintf(&b, "%d. %s - %d ko'rish\n", i+1, esc(title.Name), title.TotalViews)
	}
	return b.String()
}

func adminTitlesText(titles []store.TitleSummary, page, pages, total, offset int, deleteMode bool) string {
	var b strings.Builder
	if deleteMode {
		fmt.Fprintf(&b, "🗑️ <b>Doramalarni o'chirish</b> (Sahifa %d/%d)\n\n", page+1, pages)
		b.WriteString("Quyidagi doramalardan birini o'chirishingiz mumkin:\n\n")
	} else {
		fmt.Fprintf(&b, "🎬 <b>Barcha doramalar</b> (Sahifa %d/%d)\n\n", page+1, pages)
		fmt.Fprintf(&b, "Jami doramalar: %d ta\n\n", total)
	}
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. 🎬 %s\n   🔗 Kod: %s\n   📺 Qismlar: %d ta\n\n",
			offset+i+1, esc(title.Name), esc(title.Code), title.EpisodeCount)
	}
	return b.String()
}

func adminTitleText(title store.Title, episodes int) string {
	var b strings.Builder
	b.WriteString("🎬 <b>Dorama ma'lumotlari</b>\n\n")
	fmt.Fprintf(&b, "📝 <b>Nomi:</b> %s\n", esc(title.Name))
	fmt.Fprintf(&b, "🔗 <b>Kodi:</b> %s\n", esc(title.Code))
	fmt.Fprintf(&b, "📺 <b>Qismlar:</b> %d ta\n", episodes)
	if title.ReleaseYear > 0 {
		fmt.Fprintf(&b, "🗓️ <b>Yil:</b> %d\n", title.ReleaseYear)
	}
	if title.Genre != "" {
		fmt.Fprintf(&b, "🎭 <b>Janr:</b> %s\n", esc(title.Genre))
	}
	if title.Rating > 0 {
		fmt.Fprintf(&b, "⭐ <b>Reyting:</b> %s/10\n", strconv.FormatFloat(title.Rating, 'f', -1, 64))
	}
	if title.Description != "" {
		fmt.Fprintf(&b, "\n📄 <b>Tavsif:</b>\n%s", esc(truncate(title.Description, 200)))
	}
	return b.String()
}

func deleteConfirmText(title store.Title, episodes int) string {
	return fmt.Sprintf("⚠️ <b>DORAMANI O'CHIRISH</b> ⚠️\n\n"+
		"🎬 <b>Dorama:</b> %s\n"+
		"🔗 <b>Kod:</b> %s\n"+
		"📺 <b>Qismlar:</b> %d ta\n\n"+
		"❌ <b>Diqqat! Bu amalni ortga qaytarib bo'lmaydi!</b>\n"+
		"Dorama va barcha qismlari butunlay o'chib ketadi.\n\n"+
		"Rostan ham o'chirmoqchimisiz?", esc(title.Name), esc(title.Code), episodes)
}

func titleDeletedText(code string) string {
	return fmt.Sprintf("✅ Dorama #%s o'chirildi!", esc(code))
}

func channelsText(channels []store.Channel) string {
	var b strings.Builder
	b.WriteString("📢 <b>Kanallar ro'yxati:</b>\n\n")
	if len(channels) == 0 {
		b.WriteString("📭 Hozircha kanallar yo'q\n")
	}
	for _, channel := range channels {
		kind := "📢 Ochiq"
		if channel.IsPrivate {
			kind = "🔒 Maxfiy"
		}
		fmt.Fprintf(&b, "• %s %s", kind, esc(channel.Label()))
		if !channel.Active {
			b.WriteString(" (o'chirilgan)")
		}
		b.WriteString("\n")
		if channel.InviteLink != "" {
			fmt.Fprintf(&b, "  🔗 Link: %s\n", esc(channel.InviteLink))
		}
		fmt.Fprintf(&b, "  🆔 ID: %d\n\n", channel.ID)
	}
	b.WriteString("\n<b>Kanal qo'shish:</b> /addchannel &lt;id&gt; &lt;@username&gt; [nomi] [invite_link] [private]")
	b.WriteString("\n<b>Maxfiy kanal qo'shish:</b> /addprivatechannel &lt;id&gt; &lt;invite_link&gt; [nomi]")
	b.WriteString("\n<b>Kanal o'chirish:</b> /deletechannel &lt;id&gt;")
	return b.String()
}

func channelAddedText(channel store.Channel) string {
	if channel.IsPrivate {
		return fmt.Sprintf("✅ Maxfiy kanal %s qo'shildi!", esc(channel.Label()))
	}
	return fmt.Sprintf("✅ Kanal %s qo'shildi!", esc(channel.Label()))
}

func requestsText(total int) string {
	text := fmt.Sprintf("🆕 <b>Kutilayotgan so'rovlar:</b>\n\n📊 Jami so'rovlar: %d ta\n\n", total)
	if total == 0 {
		return text + "📭 Hozircha so'rovlar yo'q"
	}
	return text + "Tasdiqlash uchun ✅ tugmasini bosing."
}

func requestText(row requestRow) string {
	var b strings.Builder
	b.WriteString("🆕 <b>So'rov ma'lumotlari</b>\n\n")
	fmt.Fprintf(&b, "👤 Foydalanuvchi: %s\n", esc(row.userLabel()))
	fmt.Fprintf(&b, "📢 Kanal: %s\n", esc(row.channelLabel()))
	fmt.Fprintf(&b, "📌 Holat: %s\n", row.request.Status)
	fmt.Fprintf(&b, "🆔 User ID: %d\n", row.request.UserID)
	fmt.Fprintf(&b, "🆔 Chat ID: %d\n", row.request.ChannelID)
	if !row.request.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "🕒 Yaratilgan: %s\n", row.request.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func approvedText(row requestRow) string {
	return fmt.Sprintf("✅ So'rov tasdiqlandi: %s → %s", esc(row.userLabel()), esc(row.channelLabel()))
}

func joinRequestText(user store.User, channelTitle string, channelID int64) string {
	username := user.Username
	if username == "" {
		username = "Noma lum"
	}
	return fmt.Sprintf("🆕 Yangi so'rov!\n\n"+
		"👤 Foydalanuvchi: %s (@%s)\n"+
		"📢 Kanal: %s\n"+
		"🆔 User ID: %d\n"+
		"🆔 Chat ID: %d", esc(user.FirstName), esc(username), esc(channelTitle), user.ID, channelID)
}

func settingsText(settings map[string]string, admins int) string {
	archive := settings[store.SettingArchiveChannel]
	if archive == "" {
		archive = "Oʻrnatilmagan"
	}
	return fmt.Sprintf("⚙️ <b>Bot sozlamalari:</b>\n\n"+
		"👋 <b>Xush kelish xabari:</b>\n%s\n\n"+
		"ℹ️ <b>Yordam xabari:</b>\n%s\n\n"+
		"📁 <b>Arxiv kanali:</b> %s\n\n"+
		"👨‍💻 <b>Adminlar soni:</b> %d ta\n\n"+
		"Quyidagi sozlamalarni o'zgartirishingiz mumkin:",
		esc(truncate(settings[store.SettingWelcomeMessage], 100)),
		esc(truncate(settings[store.SettingHelpMessage], 100)),
		esc(archive), admins)
}

func ingestedText(code string, episode, total int) string {
	return fmt.Sprintf("✅ #%s doramasiga %d-qism qo'shildi!\n\n📊 Jami qismlar: %d ta\n\n"+
		"Endi foydalanuvchilar ushbu qismni tomosha qilishlari mumkin.", esc(code), episode, total)
}
