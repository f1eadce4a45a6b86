package botrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/telegram"
	"github.com/hik1komori/life-dorama-bot/internal/tracing"
	"github.com/hik1komori/life-dorama-bot/internal/webhook"
)

// ErrAlreadyRunning reports that another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another doramabot instance is already running")

// Options configures process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the bot and serves updates until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := AcquireInstanceLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("doramabot-%s.log", stamp))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update doramabot.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "doramabot-*.log", Exclude: []string{logPath}},
	)

	runID := uuid.NewString()
	ctx := logging.WithRunID(signalCtx, runID)
	logger = logging.WithContext(ctx, logger)

	shutdownTracing, err := tracing.Setup(ctx, cfg)
	if err != nil {
		logging.WarnWithContext(logger, "tracing disabled", "tracing_setup_failed",
			logging.String(logging.FieldErrorHint, "check tracing.endpoint"),
			logging.String(logging.FieldImpact, "no spans are exported"),
			logging.Error(err),
		)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	client, err := telegram.NewClient(cfg)
	if err != nil {
		return err
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verify bot token: %w", err)
	}
	logger.Info("bot identity verified",
		logging.Int64("bot_id", me.ID),
		logging.String("bot_username", me.Username),
		logging.Int("admins", len(cfg.Telegram.AdminIDs)),
	)

	notifier := notifications.NewService(cfg)
	rt, err := Assemble(ctx, cfg, st, client, notifier, pacing.RealClock(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("runtime close failed", logging.Error(err))
		}
	}()

	if err := notifier.Publish(ctx, notifications.EventBotStarted, notifications.Payload{"runID": runID}); err != nil {
		logger.Debug("startup notification failed", logging.Error(err))
	}

	if cfg.Webhook.Enabled {
		err = serveWebhook(ctx, cfg, client, st, rt, logger)
	} else {
		err = servePolling(ctx, client, rt, logger)
	}
	logger.Info("doramabot shutting down")
	return err
}

func servePolling(ctx context.Context, client *telegram.Client, rt *Runtime, logger *slog.Logger) error {
	if err := client.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	logger.Info("polling for updates")
	return client.Poll(ctx, logger, rt.Bot.Handle)
}

func serveWebhook(ctx context.Context, cfg *config.Config, client *telegram.Client, st *store.Store, rt *Runtime, logger *slog.Logger) error {
	server := webhook.New(cfg, st, rt.Store, rt.Bot.Handle, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}
	url := strings.TrimRight(cfg.Webhook.PublicURL, "/") + server.WebhookPath()
	if err := client.SetWebhook(ctx, url, cfg.Webhook.Secret); err != nil {
		server.Stop()
		return fmt.Errorf("set webhook: %w", err)
	}
	logger.Info("webhook registered", logging.String("address", server.Addr()))
	<-ctx.Done()
	return nil
}

// AcquireInstanceLock takes the single-instance file lock. The caller
// releases it with Unlock.
func AcquireInstanceLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "doramabot.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
