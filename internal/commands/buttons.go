package commands

import "strings"

// Reply keyboard labels.
const (
	ButtonSearch  = "🔍 Qidirish"
	ButtonAll     = "📚 Barcha doramalar"
	ButtonRecent  = "🆕 Yangi qo'shilgan"
	ButtonPopular = "📊 Mashhurlar"
	ButtonRandom  = "⭐ Tasodifiy"
	ButtonHelp    = "ℹ️ Yordam"
)

var buttons = map[string]Command{
	ButtonSearch:  StartSearch{},
	ButtonAll:     ListTitles{},
	ButtonRecent:  ListRecent{},
	ButtonPopular: ListPopular{},
	ButtonRandom:  RandomTitle{},
	ButtonHelp:    Help{},
}

// ParseButton maps a reply keyboard label to its command.
func ParseButton(text string) (Command, bool) {
	cmd, ok := buttons[strings.TrimSpace(text)]
	return cmd, ok
}

// MainKeyboard is the viewer reply keyboard layout.
func MainKeyboard() [][]string {
	return [][]string{
		{ButtonSearch, ButtonAll},
		{ButtonRecent, ButtonPopular},
		{ButtonRandom, ButtonHelp},
	}
}
