package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// MaxCallbackData is Telegram's limit on inline button payloads.
const MaxCallbackData = 64

const sep = ":"

var settingAliases = map[string]string{
	"welcome": store.SettingWelcomeMessage,
	"help":    store.SettingHelpMessage,
	"archive": store.SettingArchiveChannel,
}

func settingAlias(key string) (string, bool) {
	for alias, full := range settingAliases {
		if full == key {
			return alias, true
		}
	}
	return "", false
}

// Encode renders a callback command as inline button data.
func Encode(cmd Command) (string, error) {
	var parts []string
	switch c := cmd.(type) {
	case MainMenu:
		parts = []string{"menu"}
	case StartSearch:
		parts = []string{"search"}
	case ListTitles:
		parts = []string{"all", page(c.Page)}
	case ListRecent:
		parts = []string{"recent", page(c.Page)}
	case ListPopular:
		parts = []string{"popular", page(c.Page)}
	case RandomTitle:
		parts = []string{"random"}
	case Help:
		parts = []string{"help"}
	case ShowTitle:
		parts = []string{"title", c.Code}
	case SendAll:
		parts = []string{"sendall", c.Code}
	case ListEpisodes:
		parts = []string{"eps", c.Code, page(c.Page)}
	case Watch:
		parts = []string{"watch", c.Code, strconv.Itoa(c.Episode)}
	case CheckSubscription:
		parts = []string{"check"}
	case Noop:
		parts = []string{"noop"}
	case AdminMenu:
		parts = []string{"adm"}
	case AdminStats:
		parts = []string{"adm", "stats"}
	case AdminTitles:
		parts = []string{"adm", "titles", page(c.Page)}
	case AdminDeleteList:
		parts = []string{"adm", "dellist", page(c.Page)}
	case AdminTitleInfo:
		parts = []string{"adm", "info", c.Code}
	case AdminDeleteAsk:
		parts = []string{"adm", "delask", c.Code}
	case AdminDeleteTitle:
		parts = []string{"adm", "del", c.Code}
	case AdminChannels:
		parts = []string{"adm", "channels"}
	case AdminRequests:
		parts = []string{"adm", "reqs", page(c.Page)}
	case AdminRequestInfo:
		parts = []string{"adm", "req", id(c.UserID), id(c.ChannelID)}
	case AdminApprove:
		parts = []string{"adm", "approve", id(c.UserID), id(c.ChannelID)}
	case AdminSettings:
		parts = []string{"adm", "settings"}
	case AdminEditSetting:
		alias, ok := settingAlias(c.Key)
		if !ok {
			return "", fmt.Errorf("encode setting %q: unknown key", c.Key)
		}
		parts = []string{"adm", "set", alias}
	case AdminBroadcastHelp:
		parts = []string{"adm", "broadcast"}
	default:
		return "", fmt.Errorf("encode %T: not a callback command", cmd)
	}
	for _, part := range parts {
		if part == "" || strings.Contains(part, sep) {
			return "", fmt.Errorf("encode %T: invalid field %q", cmd, part)
		}
	}
	data := strings.Join(parts, sep)
	if len(data) > MaxCallbackData {
		return "", fmt.Errorf("encode %T: %d bytes exceeds callback limit", cmd, len(data))
	}
	return data, nil
}

// MustEncode is Encode for commands built from constants.
func MustEncode(cmd Command) string {
	data, err := Encode(cmd)
	if err != nil {
		panic(err)
	}
	return data
}

// ParseCallback decodes inline button data.
func ParseCallback(data string) (Command, error) {
	if data == "" || len(data) > MaxCallbackData {
		return nil, malformed(data, "empty or oversized")
	}
	parts := strings.Split(data, sep)
	args := parts[1:]

	switch parts[0] {
	case "menu":
		return noArgs(data, args, MainMenu{})
	case "search":
		return noArgs(data, args, StartSearch{})
	case "random":
		return noArgs(data, args, RandomTitle{})
	case "help":
		return noArgs(data, args, Help{})
	case "check":
		return noArgs(data, args, CheckSubscription{})
	case "noop":
		return noArgs(data, args, Noop{})
	case "all", "recent", "popular":
		if len(args) != 1 {
			return nil, malformed(data, "expected a page")
		}
		p, err := parsePage(data, args[0])
		if err != nil {
			return nil, err
		}
		switch parts[0] {
		case "all":
			return ListTitles{Page: p}, nil
		case "recent":
			return ListRecent{Page: p}, nil
		default:
			return ListPopular{Page: p}, nil
		}
	case "title", "sendall":
		if len(args) != 1 {
			return nil, malformed(data, "expected a title code")
		}
		code, err := parseCode(data, args[0])
		if err != nil {
			return nil, err
		}
		if parts[0] == "title" {
			return ShowTitle{Code: code}, nil
		}
		return SendAll{Code: code}, nil
	case "eps", "watch":
		if len(args) != 2 {
			return nil, malformed(data, "expected a title code and a number")
		}
		code, err := parseCode(data, args[0])
		if err != nil {
			return nil, err
		}
		if parts[0] == "eps" {
			p, err := parsePage(data, args[1])
			if err != nil {
				return nil, err
			}
			return ListEpisodes{Code: code, Page: p}, nil
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return nil, malformed(data, "episode must be a positive integer")
		}
		return Watch{Code: code, Episode: n}, nil
	case "adm":
		return parseAdmin(data, args)
	}
	return nil, malformed(data, "unknown action")
}

func parseAdmin(data string, args []string) (Command, error) {
	if len(args) == 0 {
		return AdminMenu{}, nil
	}
	action, rest := args[0], args[1:]
	switch action {
	case "stats":
		return noArgs(data, rest, AdminStats{})
	case "channels":
		return noArgs(data, rest, AdminChannels{})
	case "settings":
		return noArgs(data, rest, AdminSettings{})
	case "broadcast":
		return noArgs(data, rest, AdminBroadcastHelp{})
	case "titles", "dellist", "reqs":
		if len(rest) != 1 {
			return nil, malformed(data, "expected a page")
		}
		p, err := parsePage(data, rest[0])
		if err != nil {
			return nil, err
		}
		switch action {
		case "titles":
			return AdminTitles{Page: p}, nil
		case "dellist":
			return AdminDeleteList{Page: p}, nil
		default:
			return AdminRequests{Page: p}, nil
		}
	case "info", "delask", "del":
		if len(rest) != 1 {
			return nil, malformed(data, "expected a title code")
		}
		code, err := parseCode(data, rest[0])
		if err != nil {
			return nil, err
		}
		switch action {
		case "info":
			return AdminTitleInfo{Code: code}, nil
		case "delask":
			return AdminDeleteAsk{Code: code}, nil
		default:
			return AdminDeleteTitle{Code: code}, nil
		}
	case "req", "approve":
		if len(rest) != 2 {
			return nil, malformed(data, "expected user and channel ids")
		}
		userID, err1 := strconv.ParseInt(rest[0], 10, 64)
		channelID, err2 := strconv.ParseInt(rest[1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil, malformed(data, "ids must be integers")
		}
		if action == "req" {
			return AdminRequestInfo{UserID: userID, ChannelID: channelID}, nil
		}
		return AdminApprove{UserID: userID, ChannelID: channelID}, nil
	case "set":
		if len(rest) != 1 {
			return nil, malformed(data, "expected a setting")
		}
		key, ok := settingAliases[rest[0]]
		if !ok {
			return nil, malformed(data, "unknown setting")
		}
		return AdminEditSetting{Key: key}, nil
	}
	return nil, malformed(data, "unknown admin action")
}

func noArgs(data string, args []string, cmd Command) (Command, error) {
	if len(args) != 0 {
		return nil, malformed(data, "unexpected arguments")
	}
	return cmd, nil
}

func parsePage(data, raw string) (int, error) {
	p, err := strconv.Atoi(raw)
	if err != nil || p < 0 {
		return 0, malformed(data, "page must be a non-negative integer")
	}
	return p, nil
}

func parseCode(data, raw string) (string, error) {
	code := store.NormalizeCode(raw)
	if err := store.ValidateCode(code); err != nil {
		return "", malformed(data, "invalid title code")
	}
	return code, nil
}

func page(p int) string { return strconv.Itoa(p) }

func id(v int64) string { return strconv.FormatInt(v, 10) }
