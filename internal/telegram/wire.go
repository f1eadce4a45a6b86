package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/go-telegram/bot/models"

	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// AllowedUpdates are the update kinds the bot subscribes to. chat_member is
// only delivered when requested explicitly.
var AllowedUpdates = []string{
	models.AllowedUpdateMessage,
	models.AllowedUpdateCallbackQuery,
	models.AllowedUpdateChatJoinRequest,
	models.AllowedUpdateChatMember,
}

func userFrom(u models.User) transport.User {
	return transport.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, IsBot: u.IsBot}
}

func chatFrom(c models.Chat) transport.Chat {
	return transport.Chat{ID: c.ID, Type: string(c.Type), Title: c.Title, Username: c.Username}
}

func messageFrom(m *models.Message) *transport.Message {
	if m == nil {
		return nil
	}
	msg := &transport.Message{
		ID:      m.ID,
		Chat:    chatFrom(m.Chat),
		Text:    m.Text,
		Caption: m.Caption,
		ReplyTo: messageFrom(m.ReplyToMessage),
	}
	if m.From != nil {
		from := userFrom(*m.From)
		msg.From = &from
	}
	if m.Video != nil {
		msg.Video = &transport.VideoFile{
			ContentRef:      m.Video.FileID,
			DurationSeconds: m.Video.Duration,
			SizeBytes:       m.Video.FileSize,
		}
	}
	return msg
}

// callbackMessage resolves the message a button was attached to. Messages
// too old for Telegram to return in full still carry chat and id.
func callbackMessage(m models.MaybeInaccessibleMessage) *transport.Message {
	switch {
	case m.Message != nil:
		return messageFrom(m.Message)
	case m.InaccessibleMessage != nil:
		return &transport.Message{ID: m.InaccessibleMessage.MessageID, Chat: chatFrom(m.InaccessibleMessage.Chat)}
	default:
		return nil
	}
}

// memberOf extracts the status and user of one chat member variant.
func memberOf(m models.ChatMember) (transport.MemberStatus, transport.User, error) {
	var user *models.User
	switch m.Type {
	case models.ChatMemberTypeOwner:
		if m.Owner != nil {
			user = m.Owner.User
		}
	case models.ChatMemberTypeAdministrator:
		if m.Administrator != nil {
			user = &m.Administrator.User
		}
	case models.ChatMemberTypeMember:
		if m.Member != nil {
			user = m.Member.User
		}
	case models.ChatMemberTypeRestricted:
		if m.Restricted != nil {
			user = m.Restricted.User
		}
	case models.ChatMemberTypeLeft:
		if m.Left != nil {
			user = m.Left.User
		}
	case models.ChatMemberTypeBanned:
		if m.Banned != nil {
			user = m.Banned.User
		}
	}
	status, err := transport.ParseMemberStatus(string(m.Type))
	if err != nil {
		return "", transport.User{}, err
	}
	if user == nil {
		return status, transport.User{}, nil
	}
	return status, userFrom(*user), nil
}

// updateFrom converts an SDK update. ok is false for kinds the bot ignores.
func updateFrom(u *models.Update) (transport.Update, bool, error) {
	update := transport.Update{ID: u.ID}
	switch {
	case u.Message != nil:
		update.Message = messageFrom(u.Message)
	case u.CallbackQuery != nil:
		update.Callback = &transport.CallbackQuery{
			ID:      u.CallbackQuery.ID,
			From:    userFrom(u.CallbackQuery.From),
			Message: callbackMessage(u.CallbackQuery.Message),
			Data:    u.CallbackQuery.Data,
		}
	case u.ChatJoinRequest != nil:
		update.JoinRequest = &transport.JoinRequest{
			User: userFrom(u.ChatJoinRequest.From),
			Chat: chatFrom(u.ChatJoinRequest.Chat),
		}
	case u.ChatMember != nil:
		oldStatus, _, err := memberOf(u.ChatMember.OldChatMember)
		if err != nil {
			return update, false, fmt.Errorf("update %d: %w", u.ID, err)
		}
		newStatus, user, err := memberOf(u.ChatMember.NewChatMember)
		if err != nil {
			return update, false, fmt.Errorf("update %d: %w", u.ID, err)
		}
		update.MembershipChange = &transport.MembershipChange{
			User: user,
			Chat: chatFrom(u.ChatMember.Chat),
			Old:  oldStatus,
			New:  newStatus,
		}
	default:
		return update, false, nil
	}
	return update, true, nil
}

// DecodeUpdate parses one webhook payload. ok is false for update kinds the
// bot does not handle.
func DecodeUpdate(data []byte) (transport.Update, bool, error) {
	var update models.Update
	if err := json.Unmarshal(data, &update); err != nil {
		return transport.Update{}, false, fmt.Errorf("decode update: %w", err)
	}
	return updateFrom(&update)
}

// markupFor picks the keyboard to attach. An inline keyboard wins over a
// reply keyboard; nil means no reply_markup field at all.
func markupFor(inline transport.InlineKeyboard, reply transport.ReplyKeyboard) models.ReplyMarkup {
	if len(inline) > 0 {
		return inlineMarkup(inline)
	}
	if len(reply) > 0 {
		rows := make([][]models.KeyboardButton, 0, len(reply))
		for _, row := range reply {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, models.KeyboardButton{Text: label})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
	}
	return nil
}

func inlineMarkup(kb transport.InlineKeyboard) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data, URL: b.URL})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
