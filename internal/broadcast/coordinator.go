// Package broadcast forwards one operator message to every known user.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const (
	tracerName           = "github.com/hik1komori/life-dorama-bot/internal/broadcast"
	defaultProgressEvery = 10
)

var (
	// ErrNoRecipients is returned when the roster is empty. Nothing is sent.
	ErrNoRecipients = errors.New("broadcast: no recipients")
	// ErrBroadcastInProgress is returned while another run holds the lock.
	ErrBroadcastInProgress = errors.New("broadcast: another broadcast is in progress")
)

// Roster supplies recipients in delivery order.
type Roster interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Lock is an exclusive run lock shared beyond the process, e.g. in Redis.
// TryAcquire reports acquired=false when another holder owns it.
type Lock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Request names the message to forward and the chat receiving progress.
type Request struct {
	OperatorChat int64
	Source       transport.MessageRef
}

// Report is the terminal accounting of one run.
type Report struct {
	RunID      string
	Total      int
	Successful int
	Failed     int
	Duration   time.Duration
}

// SuccessPercent formats successful/total*100 with one decimal.
func (r Report) SuccessPercent() string {
	if r.Total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(r.Successful)/float64(r.Total)*100)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithProgressEvery sets how many recipients pass between progress edits.
func WithProgressEvery(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.progressEvery = n
		}
	}
}

// WithLock adds a shared lock acquired after the in-process one.
func WithLock(lock Lock) Option {
	return func(c *Coordinator) {
		c.shared = lock
	}
}

// WithNotifier publishes a completion event per finished run.
func WithNotifier(n notifications.Service) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithClock overrides the time source used for run durations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator runs broadcasts one at a time.
type Coordinator struct {
	roster        Roster
	sender        transport.Sender
	pacer         pacing.Pacer
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
	progressEvery int
	shared        Lock
	notifier      notifications.Service

	running sync.Mutex
}

// New wires a coordinator. A nil pacer forwards without waiting.
func New(roster Roster, sender transport.Sender, pacer pacing.Pacer, logger *slog.Logger, opts ...Option) *Coordinator {
	if pacer == nil {
		pacer = pacing.NewInterval(0, nil)
	}
	c := &Coordinator{
		roster:        roster,
		sender:        sender,
		pacer:         pacer,
		logger:        logging.NewComponentLogger(logger, "broadcast"),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
		progressEvery: defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Broadcast forwards req.Source to every roster member in order. Per-recipient
// failures are counted and the run continues. Cancelling ctx stops the run and
// returns the partial report with ctx.Err().
func (c *Coordinator) Broadcast(ctx context.Context, req Request) (Report, error) {
	if !c.running.TryLock() {
		return Report{}, ErrBroadcastInProgress
	}
	defer c.running.Unlock()

	if c.shared != nil {
		release, acquired, err := c.shared.TryAcquire(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("acquire broadcast lock: %w", err)
		}
		if !acquired {
			return Report{}, ErrBroadcastInProgress
		}
		defer release()
	}

	recipients, err := c.roster.ListUserIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load roster: %w", err)
	}
	if len(recipients) == 0 {
		return Report{}, ErrNoRecipients
	}

	report := Report{RunID: uuid.NewString(), Total: len(recipients)}
	ctx = logging.WithRunID(ctx, report.RunID)
	ctx, span := c.tracer.Start(ctx, "broadcast.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("recipients", report.Total),
	))
	defer span.End()

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("broadcast started",
		logging.Int("recipients", report.Total),
		logging.Int64("operator_chat", req.OperatorChat),
	)
	started := c.now()

	progress, err := c.sender.SendText(ctx, req.OperatorChat, transport.Text{Body: ProgressText(report, 0)})
	if err != nil {
		logging.WarnWithContext(logger, "progress message not posted", "broadcast_progress_failed",
			logging.String(logging.FieldImpact, "operator sees only the final report"),
			logging.Error(err),
		)
	}

	for i, userID := range recipients {
		if err := c.pacer.Wait(ctx); err != nil {
			logger.Info("broadcast interrupted", logging.Int("processed", i), logging.Error(err))
			break
		}
		if _, err := c.sender.Forward(ctx, userID, req.Source); err != nil {
			report.Failed++
			logger.Debug("recipient skipped",
				logging.UserID(userID),
				logging.String(logging.FieldEventType, "broadcast_recipient_failed"),
				logging.Error(err),
			)
		} else {
			report.Successful++
		}

		processed := i + 1
		if !progress.IsZero() && (processed%c.progressEvery == 0 || processed == report.Total) {
			if err := c.sender.EditText(ctx, progress, transport.Text{Body: ProgressText(report, processed)}); err != nil {
				logger.Debug("progress edit failed", logging.Error(err))
			}
		}
	}

	report.Duration = c.now().Sub(started)
	span.SetAttributes(
		attribute.Int("broadcast.successful", report.Successful),
		attribute.Int("broadcast.failed", report.Failed),
	)
	logger.Info("broadcast finished",
		logging.Int("successful", report.Successful),
		logging.Int("failed", report.Failed),
		logging.String("success_percent", report.SuccessPercent()),
		logging.Duration("duration", report.Duration),
	)

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	c.deliverReport(ctx, logger, req.OperatorChat, progress, report)
	c.publish(ctx, logger, report)
	return report, nil
}

func (c *Coordinator) deliverReport(ctx context.Context, logger *slog.Logger, chatID int64, progress transport.MessageRef, report Report) {
	text := transport.Text{Body: ReportText(report), HTML: true}
	if !progress.IsZero() {
		if err := c.sender.EditText(ctx, progress, text); err == nil {
			return
		}
	}
	if _, err := c.sender.SendText(ctx, chatID, text); err != nil {
		logging.WarnWithContext(logger, "broadcast report not delivered", "broadcast_report_failed",
			logging.String(logging.FieldImpact, "operator must check logs for the result"),
			logging.Error(err),
		)
	}
}

func (c *Coordinator) publish(ctx context.Context, logger *slog.Logger, report Report) {
	if c.notifier == nil {
		return
	}
	err := c.notifier.Publish(ctx, notifications.EventBroadcastCompleted, notifications.Payload{
		"run_id":     report.RunID,
		"total":      report.Total,
		"successful": report.Successful,
		"failed":     report.Failed,
		"percent":    report.SuccessPercent(),
	})
	if err != nil {
		logger.Debug("broadcast notification failed", logging.Error(err))
	}
}
