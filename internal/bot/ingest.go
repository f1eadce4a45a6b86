package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	episodePattern = regexp.MustCompile(`(?i)#seria[_:]?(\d+)`)
	namePattern    = regexp.MustCompile(`(?i)#nomi[_:]?([^#\n]+)`)
)

// videoTags is what an admin's video caption declares.
type videoTags struct {
	code    string
	episode int
	name    string
	caption string
}

// parseVideoTags reads "#CODE #seria_N [#nomi Name]" from a caption. The
// returned caption has the tags removed.
func parseVideoTags(caption string) (videoTags, error) {
	var (
		tags   videoTags
		rawTag string
	)
	if m := namePattern.FindStringSubmatch(caption); m != nil {
		tags.name = strings.TrimSpace(m[1])
	}
	if m := episodePattern.FindStringSubmatch(caption); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			tags.episode = n
		}
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(caption, -1) {
		lower := strings.ToLower(m[1])
		if strings.HasPrefix(lower, "seria") || strings.HasPrefix(lower, "nomi") {
			continue
		}
		tags.code = store.NormalizeCode(m[1])
		rawTag = m[0]
		break
	}
	if tags.code == "" || store.ValidateCode(tags.code) != nil {
		return tags, errors.New(textIngestNoCode)
	}
	if tags.episode == 0 {
		return tags, errors.New(textIngestNoEpisode)
	}

	stripped := namePattern.ReplaceAllString(caption, "")
	stripped = episodePattern.ReplaceAllString(stripped, "")
	stripped = strings.Replace(stripped, rawTag, "", 1)
	for _, line := range strings.Split(stripped, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if tags.caption != "" {
				tags.caption += "\n"
			}
			tags.caption += line
		}
	}
	return tags, nil
}

// ingestVideo stores an admin's tagged video as an episode, creating the
// title on first use, and copies it to the archive channel when one is set.
func (b *Bot) ingestVideo(ctx context.Context, req *request) {
	msg := req.message
	if msg.Video == nil || msg.Video.ContentRef == "" {
		b.send(ctx, req, transport.Text{Body: textIngestNoVideo})
		return
	}
	tags, err := parseVideoTags(msg.Caption)
	if err != nil {
		b.send(ctx, req, transport.Text{Body: err.Error()})
		return
	}
	logger := req.logger.With(
		logging.TitleCode(tags.code),
		logging.Episode(tags.episode),
	)

	if _, err := b.store.GetTitle(ctx, tags.code); errors.Is(err, store.ErrNotFound) {
		name := tags.name
		if name == "" {
			name = "Dorama " + tags.code
		}
		if _, err := b.store.AddTitle(ctx, store.Title{Code: tags.code, Name: name}); err != nil {
			b.ingestFailed(ctx, req, logger, err)
			return
		}
		logger.Info("title created from upload", logging.String("name", name))
	} else if err != nil {
		b.ingestFailed(ctx, req, logger, err)
		return
	}

	_, err = b.store.AddEpisode(ctx, store.Episode{
		TitleCode:       tags.code,
		Index:           tags.episode,
		ContentRef:      msg.Video.ContentRef,
		Caption:         tags.caption,
		DurationSeconds: msg.Video.DurationSeconds,
		SizeBytes:       msg.Video.SizeBytes,
	})
	if err != nil {
		b.ingestFailed(ctx, req, logger, err)
		return
	}
	episodes, err := b.store.ListEpisodes(ctx, tags.code)
	if err != nil {
		b.ingestFailed(ctx, req, logger, err)
		return
	}
	logger.Info("episode ingested", logging.Int("episodes", len(episodes)))
	b.send(ctx, req, transport.Text{Body: ingestedText(tags.code, tags.episode, len(episodes)), HTML: true})
	b.archive(ctx, req, logger, msg.Ref())
}

func (b *Bot) ingestFailed(ctx context.Context, req *request, logger *slog.Logger, err error) {
	logger.Error("episode ingestion failed",
		logging.String(logging.FieldEventType, "ingest_failed"),
		logging.String("error_kind", store.KindOf(err)),
		logging.Error(err),
	)
	b.send(ctx, req, transport.Text{Body: textIngestFailed})
}

func (b *Bot) archive(ctx context.Context, req *request, logger *slog.Logger, source transport.MessageRef) {
	raw := strings.TrimSpace(b.setting(ctx, req, store.SettingArchiveChannel))
	if raw == "" {
		return
	}
	channelID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	if _, err := b.transport.Forward(ctx, channelID, source); err != nil {
		logger.Warn("upload not archived",
			logging.String(logging.FieldEventType, "archive_forward_failed"),
			logging.ChannelID(channelID),
			logging.String(logging.FieldErrorHint, "make the bot an admin of the archive channel"),
			logging.Error(err),
		)
	}
}
