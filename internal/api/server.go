package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/session"
	"github.com/foxseedlab/studentize/internal/signaling"
	"github.com/foxseedlab/studentize/internal/summarizer"
	"github.com/foxseedlab/studentize/internal/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

type SessionService interface {
	CreateScheduledSession(ctx context.Context, in session.CreateScheduledSessionInput) (*session.ScheduledSessionView, error)
	GetScheduledSession(ctx context.Context, id string) (*session.ScheduledSessionView, error)
	EndScheduledSession(ctx context.Context, id string) (*session.ScheduledSessionView, error)
	CreateSession(ctx context.Context, in session.CreateSessionInput) (*session.SessionView, error)
	GetSession(ctx context.Context, id string) (*session.SessionView, error)
	DeleteSession(ctx context.Context, id string) error
	SendBotToMeeting(ctx context.Context, scheduledSessionID string) (*session.SendBotResult, error)
	SummarizeTranscription(ctx context.Context, sessionID string) (*summarizer.Summary, error)
	IngestBotTranscript(ctx context.Context, botID, deliveryID string, segments []session.IngestSegment) (*session.IngestResult, error)
}

type Signaler interface {
	Exchange(ctx context.Context, advisorSlug string, offer []byte) (*signaling.Answer, error)
}

type Server struct {
	cfg       *config.Config
	verifier  auth.Verifier
	sessions  SessionService
	workflows workflow.Starter
	signaling Signaler
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewServer(cfg *config.Config, verifier auth.Verifier, sessions SessionService, workflows workflow.Starter, sig Signaler, m *metrics.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		verifier:  verifier,
		sessions:  sessions,
		workflows: workflows,
		signaling: sig,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(s.metrics))
	engine.Use(cors.New(s.corsConfig()))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	authed := requireAuth(s.verifier)

	api := engine.Group("/api")
	api.POST("/webhooks/meeting-bot", s.handleMeetingBotWebhook)

	protected := api.Group("", authed)
	protected.POST("/workflows/auto-join", s.handleStartAutoJoin)
	protected.POST("/workflows/summary", s.handleStartSummary)
	protected.POST("/session", s.handleSignaling)
	protected.POST("/session/:advisor", s.handleSignaling)
	protected.GET("/scheduled-sessions/:id/calendar.ics", s.handleCalendar)

	engine.POST("/rpc/:procedure", authed, s.handleRPC)
	return engine
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.CORSAllowedOrigins) == 0 || slices.Contains(s.cfg.CORSAllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSAllowedOrigins
	}
	return cfg
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
