package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const tracerName = "github.com/hik1komori/life-dorama-bot/internal/delivery"

// Catalog is the read and counter surface the pipeline needs.
type Catalog interface {
	GetTitle(ctx context.Context, code string) (*store.Title, error)
	GetEpisode(ctx context.Context, code string, index int) (*store.Episode, error)
	ListEpisodes(ctx context.Context, code string) ([]store.Episode, error)
	IncrementView(ctx context.Context, code string, index int) error
}

// Result summarizes one SendAll run.
type Result struct {
	RunID    string
	Code     string
	Total    int
	Sent     int
	Failed   int
	Duration time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCompletionMarkup attaches keyboards to the completion summary.
func WithCompletionMarkup(inline transport.InlineKeyboard, reply transport.ReplyKeyboard) Option {
	return func(p *Pipeline) {
		p.completionInline = inline
		p.completionReply = reply
	}
}

// WithProtectedContent controls whether videos may be forwarded or saved.
func WithProtectedContent(protect bool) Option {
	return func(p *Pipeline) {
		p.protect = protect
	}
}

// Pipeline delivers episodes through a transport sender.
type Pipeline struct {
	catalog Catalog
	sender  transport.Sender
	pacers  pacing.Factory
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	protect          bool
	completionInline transport.InlineKeyboard
	completionReply  transport.ReplyKeyboard
}

// NewPipeline wires a pipeline. Every SendAll run paces itself with a pacer
// from pacers; nil sends without waiting.
func NewPipeline(catalog Catalog, sender transport.Sender, pacers pacing.Factory, logger *slog.Logger, opts ...Option) *Pipeline {
	if pacers == nil {
		pacers = func() pacing.Pacer { return pacing.NewInterval(0, nil) }
	}
	p := &Pipeline{
		catalog: catalog,
		sender:  sender,
		pacers:  pacers,
		logger:  logging.NewComponentLogger(logger, "delivery"),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		protect: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SendOne sends a single episode and records a view on success.
func (p *Pipeline) SendOne(ctx context.Context, dest int64, title store.Title, episode store.Episode) error {
	ctx, span := p.tracer.Start(ctx, "delivery.send_one", trace.WithAttributes(
		attribute.String("title.code", title.Code),
		attribute.Int("episode.index", episode.Index),
	))
	defer span.End()

	logger := logging.WithContext(ctx, p.logger).With(
		logging.UserID(dest),
		logging.TitleCode(title.Code),
		logging.Episode(episode.Index),
	)

	_, err := p.sender.SendVideo(ctx, dest, transport.Video{
		ContentRef: episode.ContentRef,
		Caption:    EpisodeCaption(title, episode),
		Protect:    p.protect,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		logger.Warn("episode send failed",
			logging.String(logging.FieldEventType, "episode_send_failed"),
			logging.String(logging.FieldErrorHint, "check that the bot can message the user and the file id is valid"),
			logging.Error(err),
		)
		return fmt.Errorf("send episode %s/%d: %w", title.Code, episode.Index, err)
	}

	if err := p.catalog.IncrementView(ctx, title.Code, episode.Index); err != nil {
		logger.Warn("view counter not updated",
			logging.String(logging.FieldEventType, "view_increment_failed"),
			logging.String(logging.FieldImpact, "popularity stats undercount this view"),
			logging.Error(err),
		)
	}
	logger.Debug("episode sent")
	return nil
}

// SendEpisode resolves an episode by title code and index and sends it.
func (p *Pipeline) SendEpisode(ctx context.Context, dest int64, code string, index int) error {
	episode, err := p.catalog.GetEpisode(ctx, code, index)
	if err != nil {
		return err
	}
	title, err := p.catalog.GetTitle(ctx, code)
	if err != nil {
		return err
	}
	return p.SendOne(ctx, dest, *title, *episode)
}

// SendAll delivers every episode of a title. An unknown title returns
// store.ErrNotFound before anything is sent; any other outcome is reported
// through Result.
func (p *Pipeline) SendAll(ctx context.Context, dest int64, code string) (Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := p.tracer.Start(ctx, "delivery.send_all", trace.WithAttributes(
		attribute.String("title.code", code),
		attribute.String("run.id", runID),
	))
	defer span.End()

	started := p.now()
	result := Result{RunID: runID, Code: store.NormalizeCode(code)}

	title, err := p.catalog.GetTitle(ctx, code)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	episodes, err := p.catalog.ListEpisodes(ctx, code)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Total = len(episodes)

	logger := logging.WithContext(ctx, p.logger).With(
		logging.UserID(dest),
		logging.TitleCode(title.Code),
	)
	logger.Info("batch delivery started", logging.Int("episodes", result.Total))

	if _, err := p.sender.SendText(ctx, dest, transport.Text{Body: InfoText(*title, result.Total), HTML: true}); err != nil {
		logger.Warn("delivery summary not sent",
			logging.String(logging.FieldEventType, "summary_send_failed"),
			logging.Error(err),
		)
	}

	pacer := p.pacers()
	for _, episode := range episodes {
		if err := pacer.Wait(ctx); err != nil {
			logger.Info("batch delivery interrupted", logging.Int("sent", result.Sent), logging.Error(err))
			break
		}
		if err := p.SendOne(ctx, dest, *title, episode); err != nil {
			result.Failed++
			continue
		}
		result.Sent++
	}

	if ctx.Err() == nil {
		completion := transport.Text{
			Body:   CompletionText(*title, result),
			HTML:   true,
			Inline: p.completionInline,
			Reply:  p.completionReply,
		}
		if _, err := p.sender.SendText(ctx, dest, completion); err != nil {
			logger.Warn("completion summary not sent",
				logging.String(logging.FieldEventType, "summary_send_failed"),
				logging.Error(err),
			)
		}
	}

	result.Duration = p.now().Sub(started)
	span.SetAttributes(attribute.Int("episodes.sent", result.Sent), attribute.Int("episodes.failed", result.Failed))
	logger.Info("batch delivery finished",
		logging.Int("sent", result.Sent),
		logging.Int("failed", result.Failed),
		logging.Duration("duration", result.Duration),
	)
	return result, ctx.Err()
}
