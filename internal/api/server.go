package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnstream/server/internal/auth"
	"learnstream/server/internal/events"
	"learnstream/server/internal/lifecycle"
	"learnstream/server/internal/metrics"
	"learnstream/server/internal/model"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/webhook"
)

type UserReader interface {
	GetUserByID(id string) (model.User, error)
}

type LessonCatalog interface {
	GetLesson(ctx context.Context, lessonID string) (model.Lesson, error)
	CreateLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error)
}

type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

type SignatureVerifier interface {
	Verify(rawBody []byte, header string) bool
}

type EventApplier interface {
	Apply(ctx context.Context, evt webhook.Event) (lifecycle.Result, error)
}

// WebhookLogger stores deliveries that were acknowledged without a change.
type WebhookLogger interface {
	LogWebhook(ctx context.Context, entry model.WebhookLog) error
}

type PlaybackSigner interface {
	Sign(ctx context.Context, playbackID, userID string) (string, error)
}

// Deps wires the server to its collaborators. Metrics, MetricsHandler and
// WebhookLog are optional.
type Deps struct {
	Auth           *auth.Service
	Users          UserReader
	Lessons        LessonCatalog
	Enrollments    EnrollmentChecker
	Verifier       SignatureVerifier
	Reconciler     EventApplier
	WebhookLog     WebhookLogger
	Signer         PlaybackSigner
	Provider       provider.Adapter
	Hub            *events.Hub
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
	UploadOrigin   string
}

type Server struct {
	auth         *auth.Service
	users        UserReader
	lessons      LessonCatalog
	enrollments  EnrollmentChecker
	verifier     SignatureVerifier
	reconciler   EventApplier
	webhookLog   WebhookLogger
	signer       PlaybackSigner
	provider     provider.Adapter
	hub          *events.Hub
	metrics      *metrics.Metrics
	metricsH     http.Handler
	log          *slog.Logger
	uploadOrigin string
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := d.UploadOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		auth:         d.Auth,
		users:        d.Users,
		lessons:      d.Lessons,
		enrollments:  d.Enrollments,
		verifier:     d.Verifier,
		reconciler:   d.Reconciler,
		webhookLog:   d.WebhookLog,
		signer:       d.Signer,
		provider:     d.Provider,
		hub:          d.Hub,
		metrics:      d.Metrics,
		metricsH:     d.MetricsHandler,
		log:          logger,
		uploadOrigin: origin,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(s.log))

	r.POST("/webhooks/mux", s.muxWebhook)
	if s.metricsH != nil {
		r.GET("/metrics", gin.WrapH(s.metricsH))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/healthz", func(c *gin.Context) {
		writeData(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1.POST("/auth/login", s.login)
	v1.POST("/auth/refresh", s.refresh)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(s.auth))
	{
		authed.POST("/auth/logout", s.logout)
		authed.GET("/me", s.me)
		authed.GET("/lessons/:lesson_id/playback", s.lessonPlayback)
	}

	admin := authed.Group("/admin")
	admin.Use(RequireRole(model.RoleAdmin))
	{
		admin.POST("/uploads", s.createUpload)
		admin.POST("/uploads/import", s.importAsset)
		admin.POST("/uploads/from-url", s.importFromURL)
		admin.GET("/lessons/:lesson_id", s.getLesson)
		admin.GET("/lessons/:lesson_id/events", s.streamLessonEvents)
	}

	return r
}
