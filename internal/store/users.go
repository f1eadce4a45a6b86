package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserProfile carries the display fields refreshed on every interaction.
type UserProfile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// TouchUser registers a user on first contact, or refreshes the display
// fields, last activity and request counter of a known user.
func (s *Store) TouchUser(ctx context.Context, profile UserProfile) error {
	if profile.ID == 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalid)
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO users
		(id, username, first_name, last_name, joined_at, last_activity, total_requests)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_activity = excluded.last_activity,
			total_requests = users.total_requests + 1`,
		profile.ID,
		nullableString(profile.Username),
		nullableString(profile.FirstName),
		nullableString(profile.LastName),
		now,
		now,
	)
	if err != nil {
		return persistence(fmt.Sprintf("touch user %d", profile.ID), err)
	}
	return nil
}

// GetUser fetches a user profile.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistence(fmt.Sprintf("get user %d", id), err)
	}
	return user, nil
}

// ListUserIDs returns the broadcast roster ordered by join time.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT id FROM users ORDER BY joined_at, id")
	if err != nil {
		return nil, persistence("list users", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, persistence("list users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list users", err)
	}
	return ids, nil
}
