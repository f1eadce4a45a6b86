package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

const titleColumns = "t.code, t.name, t.description, t.release_year, t.genre, t.rating, t.poster_ref, t.created_at, t.updated_at"

const summaryColumns = titleColumns + ", COUNT(e.idx), COALESCE(SUM(e.views), 0)"

const episodeColumns = "title_code, idx, content_ref, caption, duration_seconds, size_bytes, views, added_at"

const userColumns = "id, username, first_name, last_name, joined_at, last_activity, total_requests"

const channelColumns = "id, username, title, invite_link, is_private, is_active, created_at"

func scanTitle(row scanner, extra ...any) (*Title, error) {
	var (
		title       Title
		description sql.NullString
		genre       sql.NullString
		poster      sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	dest := []any{
		&title.Code,
		&title.Name,
		&description,
		&title.ReleaseYear,
		&genre,
		&title.Rating,
		&poster,
		&createdRaw,
		&updatedRaw,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	title.Description = description.String
	title.Genre = genre.String
	title.PosterRef = poster.String
	var err error
	if title.CreatedAt, err = storedTime("created_at", createdRaw); err != nil {
		return nil, err
	}
	if title.UpdatedAt, err = storedTime("updated_at", updatedRaw); err != nil {
		return nil, err
	}
	return &title, nil
}

func scanSummary(row scanner) (TitleSummary, error) {
	var summary TitleSummary
	title, err := scanTitle(row, &summary.EpisodeCount, &summary.TotalViews)
	if err != nil {
		return TitleSummary{}, err
	}
	summary.Title = *title
	return summary, nil
}

func scanSummaries(rows *sql.Rows) ([]TitleSummary, error) {
	defer rows.Close()
	summaries := []TitleSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func scanEpisode(row scanner) (*Episode, error) {
	var (
		episode  Episode
		caption  sql.NullString
		addedRaw sql.NullString
	)
	if err := row.Scan(
		&episode.TitleCode,
		&episode.Index,
		&episode.ContentRef,
		&caption,
		&episode.DurationSeconds,
		&episode.SizeBytes,
		&episode.Views,
		&addedRaw,
	); err != nil {
		return nil, err
	}
	episode.Caption = caption.String
	var err error
	if episode.AddedAt, err = storedTime("added_at", addedRaw); err != nil {
		return nil, err
	}
	return &episode, nil
}

func scanUser(row scanner) (*User, error) {
	var (
		user      User
		username  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
		joinedRaw sql.NullString
		activeRaw sql.NullString
	)
	if err := row.Scan(&user.ID, &username, &firstName, &lastName, &joinedRaw, &activeRaw, &user.TotalRequests); err != nil {
		return nil, err
	}
	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	var err error
	if user.JoinedAt, err = storedTime("joined_at", joinedRaw); err != nil {
		return nil, err
	}
	if user.LastActivity, err = storedTime("last_activity", activeRaw); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanChannel(row scanner) (*Channel, error) {
	var (
		channel    Channel
		username   sql.NullString
		title      sql.NullString
		invite     sql.NullString
		isPrivate  int
		isActive   int
		createdRaw sql.NullString
	)
	if err := row.Scan(&channel.ID, &username, &title, &invite, &isPrivate, &isActive, &createdRaw); err != nil {
		return nil, err
	}
	channel.Username = username.String
	channel.Title = title.String
	channel.InviteLink = invite.String
	channel.IsPrivate = isPrivate != 0
	channel.Active = isActive != 0
	var err error
	if channel.CreatedAt, err = storedTime("created_at", createdRaw); err != nil {
		return nil, err
	}
	return &channel, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// storedTime parses a timestamp column. NULL and empty read as the zero
// time; anything else that does not parse is a corrupt row.
func storedTime(column string, raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q is not a timestamp: %w", column, raw.String, err)
	}
	return t, nil
}

// FoldSearch normalizes text for case-insensitive substring matching.
func FoldSearch(value string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(value)))
}

func foldQuery(query string) string {
	return FoldSearch(strings.ReplaceAll(query, searchKeySeparator, ""))
}

// searchKeySeparator joins the indexed fields. NUL never survives query
// folding, so a match cannot span two fields.
const searchKeySeparator = "\x00"

func searchKey(title Title) string {
	return FoldSearch(strings.Join([]string{title.Code, title.Name, title.Genre}, searchKeySeparator))
}

// NormalizeCode canonicalizes a title code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MaxCodeLength keeps encoded callback data for a title within Telegram's 64 byte limit.
const MaxCodeLength = 32

// ValidateCode rejects codes that are empty, too long, or contain separators.
func ValidateCode(code string) error {
	switch {
	case code == "":
		return fmt.Errorf("%w: title code is required", ErrInvalid)
	case len(code) > MaxCodeLength:
		return fmt.Errorf("%w: title code longer than %d bytes", ErrInvalid, MaxCodeLength)
	case strings.ContainsFunc(code, func(r rune) bool { return r == ':' || unicode.IsSpace(r) }):
		return fmt.Errorf("%w: title code %q contains a separator", ErrInvalid, code)
	}
	return nil
}
