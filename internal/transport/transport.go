package transport

import "context"

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// InlineKeyboard is a grid of buttons attached to a message.
type InlineKeyboard [][]Button

// ReplyKeyboard is a grid of persistent text buttons shown under the input field.
type ReplyKeyboard [][]string

// Text is an outbound text message.
type Text struct {
	Body   string
	HTML   bool
	Inline InlineKeyboard
	Reply  ReplyKeyboard
}

// Video is an outbound video referencing platform-hosted content.
type Video struct {
	ContentRef string
	Caption    string
	Protect    bool
	Inline     InlineKeyboard
}

// MessageRef identifies a message previously sent or received.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the reference points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// Sender delivers messages to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text Text) (MessageRef, error)
	SendVideo(ctx context.Context, chatID int64, video Video) (MessageRef, error)
	Forward(ctx context.Context, chatID int64, source MessageRef) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text Text) error
}

// CallbackAnswerer acknowledges inline button presses.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// MembershipChecker performs live channel membership lookups.
type MembershipChecker interface {
	GetMembership(ctx context.Context, channelID, userID int64) (MemberStatus, error)
}

// Transport is the full messaging surface used by the bot.
type Transport interface {
	Sender
	CallbackAnswerer
	MembershipChecker
}
