package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const summaryFrom = " FROM titles t LEFT JOIN episodes e ON e.title_code = t.code"

// AddTitle inserts a title or replaces the metadata of an existing code.
// Episodes and the original creation time survive a replace.
func (s *Store) AddTitle(ctx context.Context, title Title) (*Title, error) {
	title.Code = NormalizeCode(title.Code)
	title.Name = strings.TrimSpace(title.Name)
	if err := ValidateCode(title.Code); err != nil {
		return nil, err
	}
	if title.Name == "" {
		return nil, fmt.Errorf("%w: title name is required", ErrInvalid)
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO titles
		(code, name, description, release_year, genre, rating, poster_ref, search_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			release_year = excluded.release_year,
			genre = excluded.genre,
			rating = excluded.rating,
			poster_ref = excluded.poster_ref,
			search_key = excluded.search_key,
			updated_at = excluded.updated_at`,
		title.Code,
		title.Name,
		nullableString(title.Description),
		title.ReleaseYear,
		nullableString(title.Genre),
		title.Rating,
		nullableString(title.PosterRef),
		searchKey(title),
		now,
		now,
	)
	if err != nil {
		return nil, persistence("add title "+title.Code, err)
	}
	return s.GetTitle(ctx, title.Code)
}

// GetTitle fetches a title by code.
func (s *Store) GetTitle(ctx context.Context, code string) (*Title, error) {
	code = NormalizeCode(code)
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+titleColumns+" FROM titles t WHERE t.code = ?", code)
	title, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("title %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, persistence("get title "+code, err)
	}
	return title, nil
}

// GetTitleSummary fetches a title with its episode count and total views.
func (s *Store) GetTitleSummary(ctx context.Context, code string) (*TitleSummary, error) {
	code = NormalizeCode(code)
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+summaryColumns+summaryFrom+" WHERE t.code = ? GROUP BY t.code", code)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("title %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, persistence("get title summary "+code, err)
	}
	return &summary, nil
}

// ListTitles returns titles ordered by name. A non-positive limit returns all rows.
func (s *Store) ListTitles(ctx context.Context, limit, offset int) ([]TitleSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return s.querySummaries(ctx, "list titles",
		" GROUP BY t.code ORDER BY t.name, t.code LIMIT ? OFFSET ?", limit, offset)
}

// CountTitles returns the number of catalog titles.
func (s *Store) CountTitles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(*) FROM titles").Scan(&count); err != nil {
		return 0, persistence("count titles", err)
	}
	return count, nil
}

// Search matches the folded query against code, name and genre. An empty
// query yields no results.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]TitleSummary, error) {
	folded := foldQuery(query)
	if folded == "" {
		return []TitleSummary{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.querySummaries(ctx, "search titles",
		" WHERE instr(t.search_key, ?) > 0 GROUP BY t.code ORDER BY t.name, t.code LIMIT ?", folded, limit)
}

// ListRecent returns the most recently created titles first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]TitleSummary, error) {
	return s.querySummaries(ctx, "list recent titles",
		" GROUP BY t.code ORDER BY t.created_at DESC, t.code LIMIT ?", limit)
}

// ListPopular returns titles ordered by summed episode views.
func (s *Store) ListPopular(ctx context.Context, limit int) ([]TitleSummary, error) {
	return s.querySummaries(ctx, "list popular titles",
		" GROUP BY t.code ORDER BY COALESCE(SUM(e.views), 0) DESC, t.name LIMIT ?", limit)
}

// RandomTitle picks any title that has at least one episode.
func (s *Store) RandomTitle(ctx context.Context) (*TitleSummary, error) {
	summaries, err := s.querySummaries(ctx, "random title",
		" GROUP BY t.code HAVING COUNT(e.idx) > 0 ORDER BY RANDOM() LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("random title: %w", ErrNotFound)
	}
	return &summaries[0], nil
}

func (s *Store) querySummaries(ctx context.Context, op, tail string, args ...any) ([]TitleSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+summaryColumns+summaryFrom+tail, args...)
	if err != nil {
		return nil, persistence(op, err)
	}
	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, persistence(op, err)
	}
	return summaries, nil
}

// DeleteTitle removes a title and all of its episodes in one transaction.
func (s *Store) DeleteTitle(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM episodes WHERE title_code = ?", code); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM titles WHERE code = ?", code)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("title %s: %w", code, ErrNotFound)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return persistence("delete title "+code, err)
}

// AddEpisode inserts or replaces an episode. The view counter and added time
// of an existing episode are kept.
func (s *Store) AddEpisode(ctx context.Context, episode Episode) (*Episode, error) {
	episode.TitleCode = NormalizeCode(episode.TitleCode)
	if episode.TitleCode == "" {
		return nil, fmt.Errorf("%w: episode title code is required", ErrInvalid)
	}
	if episode.Index <= 0 {
		return nil, fmt.Errorf("%w: episode index must be positive, got %d", ErrInvalid, episode.Index)
	}
	if strings.TrimSpace(episode.ContentRef) == "" {
		return nil, fmt.Errorf("%w: episode content reference is required", ErrInvalid)
	}
	if _, err := s.GetTitle(ctx, episode.TitleCode); err != nil {
		return nil, err
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO episodes
		(title_code, idx, content_ref, caption, duration_seconds, size_bytes, views, added_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(title_code, idx) DO UPDATE SET
			content_ref = excluded.content_ref,
			caption = excluded.caption,
			duration_seconds = excluded.duration_seconds,
			size_bytes = excluded.size_bytes`,
		episode.TitleCode,
		episode.Index,
		episode.ContentRef,
		nullableString(episode.Caption),
		episode.DurationSeconds,
		episode.SizeBytes,
		s.timestamp(),
	)
	if err != nil {
		return nil, persistence(fmt.Sprintf("add episode %s/%d", episode.TitleCode, episode.Index), err)
	}
	return s.GetEpisode(ctx, episode.TitleCode, episode.Index)
}

// GetEpisode fetches one episode.
func (s *Store) GetEpisode(ctx context.Context, code string, index int) (*Episode, error) {
	code = NormalizeCode(code)
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+episodeColumns+" FROM episodes WHERE title_code = ? AND idx = ?", code, index)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("episode %s/%d: %w", code, index, ErrNotFound)
	}
	if err != nil {
		return nil, persistence(fmt.Sprintf("get episode %s/%d", code, index), err)
	}
	return episode, nil
}

// ListEpisodes returns the episodes of a title by ascending index. A missing
// title yields an empty slice.
func (s *Store) ListEpisodes(ctx context.Context, code string) ([]Episode, error) {
	code = NormalizeCode(code)
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+episodeColumns+" FROM episodes WHERE title_code = ? ORDER BY idx", code)
	if err != nil {
		return nil, persistence("list episodes "+code, err)
	}
	defer rows.Close()

	episodes := []Episode{}
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, persistence("list episodes "+code, err)
		}
		episodes = append(episodes, *episode)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list episodes "+code, err)
	}
	return episodes, nil
}

// IncrementView adds one view to an episode in a single statement.
func (s *Store) IncrementView(ctx context.Context, code string, index int) error {
	code = NormalizeCode(code)
	res, err := s.execWithRetry(ctx,
		"UPDATE episodes SET views = views + 1 WHERE title_code = ? AND idx = ?", code, index)
	if err != nil {
		return persistence(fmt.Sprintf("increment view %s/%d", code, index), err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("episode %s/%d: %w", code, index, ErrNotFound)
	}
	return nil
}
