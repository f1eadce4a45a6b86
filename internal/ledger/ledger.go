// Package ledger applies inbound channel events to the access-request ledger.
//
// States per (user, private channel) are NONE, PENDING, APPROVED and
// CANCELLED. A join request always moves the pair to PENDING; membership
// changes move it to APPROVED or CANCELLED. Every transition is an upsert, so
// replaying an event leaves the same state. Join requests are recorded for
// any chat, registered or not, so a channel registered later already knows
// who asked. Membership changes and approvals only count for registered
// private channels.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	GetChannel(ctx context.Context, id int64) (*store.Channel, error)
	GetRequestStatus(ctx context.Context, userID, channelID int64) (store.RequestStatus, error)
	UpsertRequest(ctx context.Context, userID, channelID int64, status store.RequestStatus) error
}

// Outcome describes how an event was applied. Channel is nil when the chat
// is not registered.
type Outcome struct {
	Channel *store.Channel
	From    store.RequestStatus
	To      store.RequestStatus
	Applied bool
}

// Ledger mutates request state in response to channel events.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// New builds a ledger over the store.
func New(st Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: st, logger: logging.NewComponentLogger(logger, "ledger")}
}

// Decide maps a membership transition to the ledger state it implies. The
// second result is false when the transition leaves the ledger untouched.
func Decide(old, updated transport.MemberStatus) (store.RequestStatus, bool) {
	switch {
	case updated.Joined() && old.Gone():
		return store.RequestApproved, true
	case updated.Gone() && old.Joined():
		return store.RequestCancelled, true
	default:
		return "", false
	}
}

// JoinRequest records that the user asked to join a channel.
func (l *Ledger) JoinRequest(ctx context.Context, userID, channelID int64) (Outcome, error) {
	channel, err := l.channel(ctx, channelID)
	if err != nil {
		return Outcome{}, err
	}
	return l.record(ctx, channel, userID, channelID, store.RequestPending, "join_request")
}

// MembershipChanged applies a member status transition.
func (l *Ledger) MembershipChanged(ctx context.Context, userID, channelID int64, old, updated transport.MemberStatus) (Outcome, error) {
	next, ok := Decide(old, updated)
	if !ok {
		return Outcome{}, nil
	}
	channel, err := l.channel(ctx, channelID)
	if err != nil {
		return Outcome{}, err
	}
	if channel == nil || !channel.IsPrivate {
		l.logger.Debug("membership change outside private gates ignored",
			logging.UserID(userID),
			logging.ChannelID(channelID),
		)
		return Outcome{Channel: channel}, nil
	}
	return l.record(ctx, channel, userID, channelID, next, "membership_changed")
}

// Approve marks a request approved on an operator's behalf. Only registered
// private channels gate on the ledger, so other chats are left alone.
func (l *Ledger) Approve(ctx context.Context, userID, channelID int64) (Outcome, error) {
	channel, err := l.channel(ctx, channelID)
	if err != nil {
		return Outcome{}, err
	}
	if channel == nil || !channel.IsPrivate {
		return Outcome{Channel: channel}, nil
	}
	return l.record(ctx, channel, userID, channelID, store.RequestApproved, "manual_approval")
}

// channel resolves a registered channel, or nil when the chat is unknown.
func (l *Ledger) channel(ctx context.Context, channelID int64) (*store.Channel, error) {
	channel, err := l.store.GetChannel(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve channel %d: %w", channelID, err)
	}
	return channel, nil
}

func (l *Ledger) record(ctx context.Context, channel *store.Channel, userID, channelID int64, next store.RequestStatus, event string) (Outcome, error) {
	previous, err := l.store.GetRequestStatus(ctx, userID, channelID)
	if err != nil {
		return Outcome{}, fmt.Errorf("read request %d/%d: %w", userID, channelID, err)
	}
	if err := l.store.UpsertRequest(ctx, userID, channelID, next); err != nil {
		return Outcome{}, fmt.Errorf("record %s for %d/%d: %w", next, userID, channelID, err)
	}
	l.logger.Info("access request updated",
		logging.String(logging.FieldEventType, event),
		logging.UserID(userID),
		logging.ChannelID(channelID),
		logging.String("from", string(previous)),
		logging.String("to", string(next)),
	)
	return Outcome{Channel: channel, From: previous, To: next, Applied: true}, nil
}
