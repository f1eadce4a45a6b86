// Package access decides which gate channels a user has not yet satisfied.
//
// Public channels are checked with a live membership lookup; private channels
// consult the request ledger. Any lookup failure counts as unmet, so an
// ambiguous answer never grants access. Privileged users skip the check.
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// ChannelLister lists the active gate channels in registration order.
type ChannelLister interface {
	ListActiveChannels(ctx context.Context) ([]store.Channel, error)
}

// RequestReader reads ledger state for private channels.
type RequestReader interface {
	GetRequestStatus(ctx context.Context, userID, channelID int64) (store.RequestStatus, error)
}

// Gateway evaluates channel gates. It holds no mutable state and is safe for
// concurrent use.
type Gateway struct {
	channels ChannelLister
	requests RequestReader
	members  transport.MembershipChecker
	admins   map[int64]struct{}
	logger   *slog.Logger
}

// New builds a gateway. The admin id slice is copied.
func New(channels ChannelLister, requests RequestReader, members transport.MembershipChecker, adminIDs []int64, logger *slog.Logger) *Gateway {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Gateway{
		channels: channels,
		requests: requests,
		members:  members,
		admins:   admins,
		logger:   logging.NewComponentLogger(logger, "access"),
	}
}

// IsPrivileged reports whether the user bypasses the gate.
func (g *Gateway) IsPrivileged(userID int64) bool {
	_, ok := g.admins[userID]
	return ok
}

// Evaluate returns the active channels whose condition the user does not
// meet, in registration order. An empty result grants access. A failure to
// list channels is returned to the caller, who must treat it as not granted.
func (g *Gateway) Evaluate(ctx context.Context, userID int64) ([]store.Channel, error) {
	if g.IsPrivileged(userID) {
		return nil, nil
	}
	channels, err := g.channels.ListActiveChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gate channels: %w", err)
	}

	unmet := make([]store.Channel, 0, len(channels))
	for _, channel := range channels {
		if !g.satisfied(ctx, userID, channel) {
			unmet = append(unmet, channel)
		}
	}
	return unmet, nil
}

// Granted is the fail-closed boolean form of Evaluate.
func (g *Gateway) Granted(ctx context.Context, userID int64) bool {
	unmet, err := g.Evaluate(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "gate evaluation failed", "gate_evaluation_failed",
			logging.UserID(userID),
			logging.String(logging.FieldErrorHint, "check the database file and permissions"),
			logging.String(logging.FieldImpact, "user treated as not subscribed"),
			logging.Error(err),
		)
		return false
	}
	return len(unmet) == 0
}

func (g *Gateway) satisfied(ctx context.Context, userID int64, channel store.Channel) bool {
	if channel.IsPrivate {
		status, err := g.requests.GetRequestStatus(ctx, userID, channel.ID)
		if err != nil {
			g.logger.Warn("ledger read failed",
				logging.UserID(userID),
				logging.ChannelID(channel.ID),
				logging.Error(err),
			)
			return false
		}
		return status.Grants()
	}

	status, err := g.members.GetMembership(ctx, channel.ID, userID)
	if err != nil {
		g.logger.Warn("membership lookup failed",
			logging.UserID(userID),
			logging.ChannelID(channel.ID),
			logging.Error(err),
		)
		return false
	}
	return !status.Gone()
}
