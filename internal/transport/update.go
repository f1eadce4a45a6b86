package transport

// User is the sender of an inbound event.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// Chat is the conversation an inbound event belongs to.
type Chat struct {
	ID       int64
	Type     string
	Title    string
	Username string
}

// VideoFile describes an attached video.
type VideoFile struct {
	ContentRef      string
	DurationSeconds int
	SizeBytes       int64
}

// Message is an inbound chat message.
type Message struct {
	ID      int
	Chat    Chat
	From    *User
	Text    string
	Caption string
	Video   *VideoFile
	ReplyTo *Message
}

// Ref returns the address of the message.
func (m Message) Ref() MessageRef {
	return MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

// JoinRequest is a request to join a channel that needs approval.
type JoinRequest struct {
	User User
	Chat Chat
}

// MembershipChange reports a user's status transition inside a channel.
type MembershipChange struct {
	User User
	Chat Chat
	Old  MemberStatus
	New  MemberStatus
}

// Update is the envelope of one inbound event. Exactly one field is set.
type Update struct {
	ID               int64
	Message          *Message
	Callback         *CallbackQuery
	JoinRequest      *JoinRequest
	MembershipChange *MembershipChange
}

// Kind names the populated event for logging.
func (u Update) Kind() string {
	switch {
	case u.Message != nil:
		return "message"
	case u.Callback != nil:
		return "callback"
	case u.JoinRequest != nil:
		return "join_request"
	case u.MembershipChange != nil:
		return "membership_change"
	default:
		return "unknown"
	}
}

// Sender returns the user that triggered the update, if any.
func (u Update) Sender() *User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.Callback != nil:
		user := u.Callback.From
		return &user
	case u.JoinRequest != nil:
		user := u.JoinRequest.User
		return &user
	case u.MembershipChange != nil:
		user := u.MembershipChange.User
		return &user
	default:
		return nil
	}
}
