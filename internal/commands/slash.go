package commands

import (
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// Usage texts shown when an admin command has missing or bad arguments.
const (
	UsageAddChannel        = "❌ Foydalanish: /addchannel <id> <@username> [nomi] [invite_link] [private]"
	UsageAddPrivateChannel = "❌ Foydalanish: /addprivatechannel <id> <invite_link> [nomi]"
	UsageDeleteChannel     = "❌ Kanal ID sini ko'rsating: /deletechannel <id>"
	UsageDeleteTitle       = "❌ Dorama kodini ko'rsating: /deletedorama <kod>"
)

// UsageError is a malformed admin command whose reply is a usage line.
type UsageError struct {
	Usage string
	err   error
}

func (e *UsageError) Error() string { return e.err.Error() }
func (e *UsageError) Unwrap() error { return e.err }

func usage(text, input, reason string) error {
	return &UsageError{Usage: text, err: malformed(input, reason)}
}

// IsSlash reports whether text looks like a bot command.
func IsSlash(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// ParseSlash decodes a slash command. replyTo is the id of the message the
// command replied to, or zero.
func ParseSlash(text string, replyTo int) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, malformed(text, "not a command")
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	switch name {
	case "start":
		return Start{Payload: strings.Join(args, " ")}, nil
	case "help":
		return Help{}, nil
	case "search":
		if len(args) == 0 {
			return StartSearch{}, nil
		}
		return Search{Query: strings.Join(args, " ")}, nil
	case "random":
		return RandomTitle{}, nil
	case "cancel":
		return Cancel{}, nil
	case "admin":
		return AdminMenu{}, nil
	case "stats":
		return Stats{}, nil
	case "broadcast":
		return Broadcast{ReplyTo: replyTo}, nil
	case "addchannel":
		return parseAddChannel(text, args)
	case "addprivatechannel":
		return parseAddPrivateChannel(text, args)
	case "deletechannel":
		if len(args) < 1 {
			return nil, usage(UsageDeleteChannel, text, "missing channel id")
		}
		channelID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, usage("❌ Kanal ID raqam bo'lishi kerak", text, "channel id must be an integer")
		}
		return DeleteChannel{ID: channelID}, nil
	case "deletedorama":
		if len(args) < 1 {
			return nil, usage(UsageDeleteTitle, text, "missing title code")
		}
		code := store.NormalizeCode(args[0])
		if err := store.ValidateCode(code); err != nil {
			return nil, usage(UsageDeleteTitle, text, "invalid title code")
		}
		return DeleteTitle{Code: code}, nil
	}
	return nil, malformed(text, "unknown command")
}

func parseAddChannel(text string, args []string) (Command, error) {
	if len(args) < 2 {
		return nil, usage(UsageAddChannel, text, "missing arguments")
	}
	channelID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, usage("❌ Kanal ID raqam bo'lishi kerak", text, "channel id must be an integer")
	}
	cmd := AddChannel{ID: channelID, Username: args[1]}
	if len(args) > 2 {
		cmd.Title = args[2]
	}
	if len(args) > 3 {
		cmd.InviteLink = args[3]
	}
	if len(args) > 4 {
		cmd.Private = strings.EqualFold(args[4], "true")
	}
	return cmd, nil
}

func parseAddPrivateChannel(text string, args []string) (Command, error) {
	if len(args) < 2 {
		return nil, usage(UsageAddPrivateChannel, text, "missing arguments")
	}
	channelID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, usage("❌ Kanal ID raqam bo'lishi kerak", text, "channel id must be an integer")
	}
	title := "Maxfiy kanal " + args[0]
	if len(args) > 2 {
		title = strings.Join(args[2:], " ")
	}
	return AddChannel{ID: channelID, Title: title, InviteLink: args[1], Private: true}, nil
}
