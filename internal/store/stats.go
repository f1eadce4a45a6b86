package store

import (
	"context"
	"time"
)

// Stats aggregates catalog and audience counters.
func (s *Store) Stats(ctx context.Context, popularLimit int) (*Stats, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	dayAgo := formatTime(now.Add(-24 * time.Hour))
	monthAgo := formatTime(now.Add(-30 * 24 * time.Hour))

	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM titles),
		(SELECT COUNT(*) FROM episodes),
		(SELECT COALESCE(SUM(views), 0) FROM episodes),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM users WHERE last_activity >= ?),
		(SELECT COUNT(*) FROM users WHERE last_activity >= ?),
		(SELECT COUNT(*) FROM access_requests WHERE status = ?)`,
		dayAgo, monthAgo, string(RequestPending),
	)
	if err := row.Scan(
		&stats.Titles,
		&stats.Episodes,
		&stats.TotalViews,
		&stats.Users,
		&stats.ActiveToday,
		&stats.ActiveMonth,
		&stats.PendingRequests,
	); err != nil {
		return nil, persistence("collect stats", err)
	}

	if popularLimit > 0 {
		popular, err := s.ListPopular(ctx, popularLimit)
		if err != nil {
			return nil, err
		}
		stats.Popular = popular
	}
	return &stats, nil
}
