package store

import (
	"fmt"
	"time"
)

// RequestStatus is the ledger state of a (user, private channel) pair.
type RequestStatus string

const (
	// RequestNone is reported when no ledger row exists.
	RequestNone      RequestStatus = "NONE"
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestCancelled RequestStatus = "CANCELLED"
)

var requestStatuses = []RequestStatus{RequestNone, RequestPending, RequestApproved, RequestCancelled}

// RequestStatuses returns all ledger states in lifecycle order.
func RequestStatuses() []RequestStatus {
	return append([]RequestStatus(nil), requestStatuses...)
}

// ParseRequestStatus converts a stored or user supplied value into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, status := range requestStatuses {
		if string(status) == value {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown request status %q", ErrInvalid, value)
}

// Grants reports whether the status satisfies a private channel gate.
func (s RequestStatus) Grants() bool {
	return s == RequestPending || s == RequestApproved
}

// Title is a catalog entry.
type Title struct {
	Code        string
	Name        string
	Description string
	ReleaseYear int
	Genre       string
	Rating      float64
	PosterRef   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TitleSummary is a title with aggregate episode information.
type TitleSummary struct {
	Title
	EpisodeCount int
	TotalViews   int64
}

// Episode is one playable part of a title.
type Episode struct {
	TitleCode       string
	Index           int
	ContentRef      string
	Caption         string
	DurationSeconds int
	SizeBytes       int64
	Views           int64
	AddedAt         time.Time
}

// User is a bot user profile.
type User struct {
	ID            int64
	Username      string
	FirstName     string
	LastName      string
	JoinedAt      time.Time
	LastActivity  time.Time
	TotalRequests int64
}

// DisplayName returns the best human label for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return fmt.Sprintf("user %d", u.ID)
	}
}

// Channel is a gate channel users must join.
type Channel struct {
	ID         int64
	Username   string
	Title      string
	InviteLink string
	IsPrivate  bool
	Active     bool
	CreatedAt  time.Time
}

// Label returns a display name for the channel.
func (c Channel) Label() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	default:
		return fmt.Sprintf("%d", c.ID)
	}
}

// JoinURL returns the link users follow to join the channel.
func (c Channel) JoinURL() string {
	if c.InviteLink != "" {
		return c.InviteLink
	}
	if c.Username != "" {
		return "https://t.me/" + c.Username
	}
	return ""
}

// AccessRequest is a ledger row.
type AccessRequest struct {
	UserID    int64
	ChannelID int64
	Status    RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates usage counters for the admin panel.
type Stats struct {
	Titles          int
	Episodes        int
	Users           int
	ActiveToday     int
	ActiveMonth     int
	PendingRequests int
	TotalViews      int64
	Popular         []TitleSummary
}

// Setting keys.
const (
	SettingWelcomeMessage = "welcome_message"
	SettingHelpMessage    = "help_message"
	SettingArchiveChannel = "archive_channel"
)

var defaultSettings = map[string]string{
	SettingWelcomeMessage: "🎬 Xush kelibsiz! Koreys doramalarini tomosha qilish uchun maxsus bot.",
	SettingHelpMessage:    "🤖 Botdan foydalanish uchun kerakli bo'limni tanlang.",
	SettingArchiveChannel: "",
}

// SettingKeys lists the recognised setting keys.
func SettingKeys() []string {
	return []string{SettingWelcomeMessage, SettingHelpMessage, SettingArchiveChannel}
}
