package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetRequestStatus returns the ledger state of a (user, channel) pair. A
// missing row reports RequestNone.
func (s *Store) GetRequestStatus(ctx context.Context, userID, channelID int64) (RequestStatus, error) {
	var raw string
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT status FROM access_requests WHERE user_id = ? AND channel_id = ?", userID, channelID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return RequestNone, nil
	}
	if err != nil {
		return RequestNone, persistence(fmt.Sprintf("get request %d/%d", userID, channelID), err)
	}
	status, err := ParseRequestStatus(raw)
	if err != nil {
		return RequestNone, persistence(fmt.Sprintf("get request %d/%d", userID, channelID), err)
	}
	return status, nil
}

// UpsertRequest records the ledger state of a (user, channel) pair and
// refreshes its update time.
func (s *Store) UpsertRequest(ctx context.Context, userID, channelID int64, status RequestStatus) error {
	if status == RequestNone {
		return fmt.Errorf("%w: cannot store request status %s", ErrInvalid, status)
	}
	if _, err := ParseRequestStatus(string(status)); err != nil {
		return err
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO access_requests
		(user_id, channel_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, channel_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		userID, channelID, string(status), now, now,
	)
	if err != nil {
		return persistence(fmt.Sprintf("upsert request %d/%d", userID, channelID), err)
	}
	return nil
}

// ListRequests returns ledger rows with the given statuses, oldest update first.
// No statuses lists every row.
func (s *Store) ListRequests(ctx context.Context, statuses ...RequestStatus) ([]AccessRequest, error) {
	query := "SELECT user_id, channel_id, status, created_at, updated_at FROM access_requests"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY updated_at, user_id, channel_id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, persistence("list requests", err)
	}
	defer rows.Close()

	requests := []AccessRequest{}
	for rows.Next() {
		var (
			req        AccessRequest
			statusRaw  string
			createdRaw sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(&req.UserID, &req.ChannelID, &statusRaw, &createdRaw, &updatedRaw); err != nil {
			return nil, persistence("list requests", err)
		}
		req.Status = RequestStatus(statusRaw)
		if req.CreatedAt, err = storedTime("created_at", createdRaw); err != nil {
			return nil, persistence("list requests", err)
		}
		if req.UpdatedAt, err = storedTime("updated_at", updatedRaw); err != nil {
			return nil, persistence("list requests", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list requests", err)
	}
	return requests, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
