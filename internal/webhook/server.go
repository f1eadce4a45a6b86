// Package webhook serves the optional HTTP surface: a health check, a
// token-protected status endpoint and the Telegram webhook intake.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/telegram"
)

// SecretHeader carries the secret token Telegram echoes on webhook calls.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider supplies the status endpoint payload.
type StatsProvider interface {
	Stats(ctx context.Context, popularLimit int) (*store.Stats, error)
}

// Server is the gin-backed HTTP server.
type Server struct {
	bind    string
	secret  string
	logger  *slog.Logger
	health  Pinger
	stats   StatsProvider
	handle  telegram.Handler
	started time.Time

	mu       sync.Mutex
	baseCtx  context.Context
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

// New builds a server from the webhook configuration section. handle
// receives decoded updates; it must hand work off rather than block.
func New(cfg *config.Config, health Pinger, stats StatsProvider, handle telegram.Handler, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		bind:    strings.TrimSpace(cfg.Webhook.Bind),
		secret:  strings.TrimSpace(cfg.Webhook.Secret),
		logger:  logging.NewComponentLogger(logger, "webhook"),
		health:  health,
		stats:   stats,
		handle:  handle,
		started: time.Now(),
		baseCtx: context.Background(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/api/status", s.requireSecret, s.handleStatus)
	if s.secret != "" && handle != nil {
		engine.POST("/telegram/:secret", s.handleUpdate)
	}
	s.engine = engine
	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// WebhookPath is the path Telegram must call.
func (s *Server) WebhookPath() string {
	return "/telegram/" + s.secret
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.baseCtx = ctx
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("webhook server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) requireSecret(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if s.secret == "" || !secureEqual(token, s.secret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "uptime": time.Since(s.started).Round(time.Second).String()}
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats unavailable"})
		return
	}
	stats, err := s.stats.Stats(c.Request.Context(), 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	popular := make([]gin.H, 0, len(stats.Popular))
	for _, p := range stats.Popular {
		popular = append(popular, gin.H{"code": p.Code, "name": p.Name, "views": p.TotalViews})
	}
	c.JSON(http.StatusOK, gin.H{
		"titles":           stats.Titles,
		"episodes":         stats.Episodes,
		"users":            stats.Users,
		"active_today":     stats.ActiveToday,
		"active_month":     stats.ActiveMonth,
		"pending_requests": stats.PendingRequests,
		"total_views":      stats.TotalViews,
		"popular":          popular,
	})
}

func (s *Server) handleUpdate(c *gin.Context) {
	if !secureEqual(c.Param("secret"), s.secret) || !secureEqual(c.GetHeader(SecretHeader), s.secret) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	// Undecodable payloads are acknowledged; Telegram would redeliver them forever.
	update, ok, err := telegram.DecodeUpdate(body)
	if err != nil {
		s.logger.Debug("webhook payload skipped", logging.Error(err))
	}
	if err == nil && ok {
		s.handle(s.context(), update)
	}
	c.Status(http.StatusOK)
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
