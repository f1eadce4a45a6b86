package delivery

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// EpisodeCaption returns the stored caption or the default "title / episode" label.
func EpisodeCaption(title store.Title, episode store.Episode) string {
	if caption := strings.TrimSpace(episode.Caption); caption != "" {
		return caption
	}
	return fmt.Sprintf("📺 %s\n\nQism: %d", title.Name, episode.Index)
}

// TitleCard renders the title metadata block shared by the info card and
// the title detail view.
func TitleCard(title store.Title, episodes int) string {
	var b strings.Builder
	b.WriteString("📺 <b>" + html.EscapeString(title.Name) + "</b>\n\n")
	if title.Description != "" {
		b.WriteString("📖 " + html.EscapeString(title.Description) + "\n\n")
	}
	b.WriteString("📊 <b>Ma'lumotlar:</b>\n")
	b.WriteString("• 🎬 Kod: <code>" + html.EscapeString(title.Code) + "</code>\n")
	b.WriteString("• 📋 Jami qismlar: " + strconv.Itoa(episodes) + " ta\n")
	if title.ReleaseYear > 0 {
		b.WriteString("• 🗓️ Yil: " + strconv.Itoa(title.ReleaseYear) + "\n")
	}
	if title.Genre != "" {
		b.WriteString("• 🎭 Janr: " + html.EscapeString(title.Genre) + "\n")
	}
	if title.Rating > 0 {
		b.WriteString("• ⭐ Reyting: " + strconv.FormatFloat(title.Rating, 'f', -1, 64) + "/10\n")
	}
	return b.String()
}

// InfoText is the prefatory summary sent before a batch.
func InfoText(title store.Title, episodes int) string {
	return TitleCard(title, episodes) + fmt.Sprintf("\n🎬 <b>%d ta qism yuklanmoqda...</b>", episodes)
}

// CompletionText is the closing summary sent after a batch.
func CompletionText(title store.Title, result Result) string {
	var b strings.Builder
	b.WriteString("✅ <b>" + html.EscapeString(title.Name) + "</b>\n\n")
	b.WriteString(fmt.Sprintf("🎬 Barcha %d qism muvaffaqiyatli yuklandi!\n\n", result.Sent))
	if result.Failed > 0 {
		b.WriteString(fmt.Sprintf("⚠️ %d qism yuborilmadi.\n\n", result.Failed))
	}
	b.WriteString("Boshqa dorama qidirish uchun /start ni bosing")
	return b.String()
}
