// Package commands decodes inbound callback data, slash commands and reply
// keyboard buttons into a closed set of command values.
//
// Decoding happens once at the transport boundary; the bot dispatches on the
// concrete type with an exhaustive type switch. Malformed input is rejected
// with ErrMalformed and never reaches a handler.
package commands

import (
	"errors"
	"fmt"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// Command is implemented only by the types in this package.
type Command interface {
	command()
}

// ErrMalformed reports input that does not decode into a Command.
var ErrMalformed = errors.New("malformed command")

type decodeError struct {
	input  string
	reason string
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformed, e.input, e.reason)
}

func (e *decodeError) Is(target error) bool { return target == ErrMalformed }

// ErrorKind implements store.ErrorClassifier.
func (e *decodeError) ErrorKind() string { return store.KindValidation }

func malformed(input, reason string) error {
	return &decodeError{input: input, reason: reason}
}

// Viewer commands.
type (
	MainMenu     struct{}
	StartSearch  struct{}
	ListTitles   struct{ Page int }
	ListRecent   struct{ Page int }
	ListPopular  struct{ Page int }
	RandomTitle  struct{}
	Help         struct{}
	ShowTitle    struct{ Code string }
	SendAll      struct{ Code string }
	ListEpisodes struct {
		Code string
		Page int
	}
	Watch struct {
		Code    string
		Episode int
	}
	CheckSubscription struct{}
	// Noop answers presses on inert buttons such as the page indicator.
	Noop struct{}
	// Search is free text that matched nothing else.
	Search struct{ Query string }
)

// Start is /start, optionally with a deep-link payload.
type Start struct{ Payload string }

// Admin commands.
type (
	AdminMenu        struct{}
	AdminStats       struct{}
	AdminTitles      struct{ Page int }
	AdminDeleteList  struct{ Page int }
	AdminTitleInfo   struct{ Code string }
	AdminDeleteAsk   struct{ Code string }
	AdminDeleteTitle struct{ Code string }
	AdminChannels    struct{}
	AdminRequests    struct{ Page int }
	AdminRequestInfo struct {
		UserID    int64
		ChannelID int64
	}
	AdminApprove struct {
		UserID    int64
		ChannelID int64
	}
	AdminSettings      struct{}
	AdminEditSetting   struct{ Key string }
	AdminBroadcastHelp struct{}
)

// Admin slash commands.
type (
	// Broadcast forwards the replied-to message to every user. A zero
	// ReplyTo means the command was not sent as a reply.
	Broadcast  struct{ ReplyTo int }
	Stats      struct{}
	AddChannel struct {
		ID         int64
		Username   string
		Title      string
		InviteLink string
		Private    bool
	}
	DeleteChannel struct{ ID int64 }
	DeleteTitle   struct{ Code string }
	Cancel        struct{}
)

func (MainMenu) command()           {}
func (StartSearch) command()        {}
func (ListTitles) command()         {}
func (ListRecent) command()         {}
func (ListPopular) command()        {}
func (RandomTitle) command()        {}
func (Help) command()               {}
func (ShowTitle) command()          {}
func (SendAll) command()            {}
func (ListEpisodes) command()       {}
func (Watch) command()              {}
func (CheckSubscription) command()  {}
func (Noop) command()               {}
func (Search) command()             {}
func (Start) command()              {}
func (AdminMenu) command()          {}
func (AdminStats) command()         {}
func (AdminTitles) command()        {}
func (AdminDeleteList) command()    {}
func (AdminTitleInfo) command()     {}
func (AdminDeleteAsk) command()     {}
func (AdminDeleteTitle) command()   {}
func (AdminChannels) command()      {}
func (AdminRequests) command()      {}
func (AdminRequestInfo) command()   {}
func (AdminApprove) command()       {}
func (AdminSettings) command()      {}
func (AdminEditSetting) command()   {}
func (AdminBroadcastHelp) command() {}
func (Broadcast) command()          {}
func (Stats) command()              {}
func (AddChannel) command()         {}
func (DeleteChannel) command()      {}
func (DeleteTitle) command()        {}
func (Cancel) command()             {}

// Admin reports whether the command requires a privileged sender.
func Admin(cmd Command) bool {
	switch cmd.(type) {
	case AdminMenu, AdminStats, AdminTitles, AdminDeleteList, AdminTitleInfo, AdminDeleteAsk,
		AdminDeleteTitle, AdminChannels, AdminRequests, AdminRequestInfo, AdminApprove,
		AdminSettings, AdminEditSetting, AdminBroadcastHelp,
		Broadcast, Stats, AddChannel, DeleteChannel, DeleteTitle:
		return true
	default:
		return false
	}
}
