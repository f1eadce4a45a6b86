package bot

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// onJoinRequest records the request in the ledger and tells the admins.
func (b *Bot) onJoinRequest(ctx context.Context, logger *slog.Logger, jr *transport.JoinRequest) {
	logger = logger.With(logging.ChannelID(jr.Chat.ID))
	profile := store.UserProfile{
		ID:        jr.User.ID,
		Username:  jr.User.Username,
		FirstName: jr.User.FirstName,
		LastName:  jr.User.LastName,
	}
	if err := b.store.TouchUser(ctx, profile); err != nil {
		logger.Debug("join requester not registered", logging.Error(err))
	}

	outcome, err := b.ledger.JoinRequest(ctx, jr.User.ID, jr.Chat.ID)
	if err != nil {
		logging.ErrorWithContext(logger, "join request not recorded", "join_request_failed",
			logging.String(logging.FieldErrorHint, "check the database; the user stays gated until they retry"),
			logging.Error(err),
		)
		return
	}
	if !outcome.Applied {
		return
	}

	channelTitle := jr.Chat.Title
	if channelTitle == "" && outcome.Channel != nil {
		channelTitle = outcome.Channel.Label()
	}
	if channelTitle == "" {
		channelTitle = strconv.FormatInt(jr.Chat.ID, 10)
	}
	user := store.User{ID: jr.User.ID, Username: jr.User.Username, FirstName: jr.User.FirstName, LastName: jr.User.LastName}
	text := transport.Text{Body: joinRequestText(user, channelTitle, jr.Chat.ID), HTML: true}
	for _, adminID := range b.adminIDs {
		if _, err := b.transport.SendText(ctx, adminID, text); err != nil {
			logger.Debug("admin not notified of join request",
				logging.Int64("admin_id", adminID),
				logging.Error(err),
			)
		}
	}
	err = b.notifier.Publish(ctx, notifications.EventJoinRequest, notifications.Payload{
		"user":      user.DisplayName(),
		"username":  jr.User.Username,
		"userID":    jr.User.ID,
		"channel":   channelTitle,
		"channelID": jr.Chat.ID,
	})
	if err != nil {
		logger.Debug("join request notification failed", logging.Error(err))
	}
}

// onMembershipChange moves the ledger when a user joins or leaves a
// private gate channel.
func (b *Bot) onMembershipChange(ctx context.Context, logger *slog.Logger, change *transport.MembershipChange) {
	_, err := b.ledger.MembershipChanged(ctx, change.User.ID, change.Chat.ID, change.Old, change.New)
	if err != nil {
		logging.ErrorWithContext(logger, "membership change not recorded", "membership_change_failed",
			logging.ChannelID(change.Chat.ID),
			logging.String("old_status", string(change.Old)),
			logging.String("new_status", string(change.New)),
			logging.Error(err),
		)
	}
}
