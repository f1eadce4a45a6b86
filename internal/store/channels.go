package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AddChannel registers a gate channel or updates an existing one. A channel
// keeps its registration position across updates.
func (s *Store) AddChannel(ctx context.Context, channel Channel) (*Channel, error) {
	if channel.ID == 0 {
		return nil, fmt.Errorf("%w: channel id is required", ErrInvalid)
	}
	channel.Username = strings.TrimPrefix(strings.TrimSpace(channel.Username), "@")
	if channel.IsPrivate && strings.TrimSpace(channel.InviteLink) == "" {
		return nil, fmt.Errorf("%w: private channel %d needs an invite link", ErrInvalid, channel.ID)
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO channels
		(id, username, title, invite_link, is_private, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			title = excluded.title,
			invite_link = excluded.invite_link,
			is_private = excluded.is_private,
			is_active = 1`,
		channel.ID,
		nullableString(channel.Username),
		nullableString(channel.Title),
		nullableString(channel.InviteLink),
		boolToInt(channel.IsPrivate),
		s.timestamp(),
	)
	if err != nil {
		return nil, persistence(fmt.Sprintf("add channel %d", channel.ID), err)
	}
	return s.GetChannel(ctx, channel.ID)
}

// GetChannel fetches a registered channel.
func (s *Store) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+channelColumns+" FROM channels WHERE id = ?", id)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistence(fmt.Sprintf("get channel %d", id), err)
	}
	return channel, nil
}

// SetChannelActive toggles whether a channel gates access.
func (s *Store) SetChannelActive(ctx context.Context, id int64, active bool) error {
	res, err := s.execWithRetry(ctx, "UPDATE channels SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return persistence(fmt.Sprintf("set channel %d active", id), err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteChannel removes a channel and its ledger rows.
func (s *Store) DeleteChannel(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM access_requests WHERE channel_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", id)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("channel %d: %w", id, ErrNotFound)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return persistence(fmt.Sprintf("delete channel %d", id), err)
}

// ListChannels returns channels in registration order.
func (s *Store) ListChannels(ctx context.Context, activeOnly bool) ([]Channel, error) {
	query := "SELECT " + channelColumns + " FROM channels"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY seq"
	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, persistence("list channels", err)
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, persistence("list channels", err)
		}
		channels = append(channels, *channel)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list channels", err)
	}
	return channels, nil
}

// ListActiveChannels returns the gate channels in registration order.
func (s *Store) ListActiveChannels(ctx context.Context) ([]Channel, error) {
	return s.ListChannels(ctx, true)
}
