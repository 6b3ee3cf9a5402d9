package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learnstream/server/internal/api"
	"learnstream/server/internal/auth"
	"learnstream/server/internal/cache"
	"learnstream/server/internal/config"
	"learnstream/server/internal/events"
	"learnstream/server/internal/lifecycle"
	"learnstream/server/internal/metrics"
	"learnstream/server/internal/model"
	"learnstream/server/internal/playback"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/store"
	"learnstream/server/internal/telemetry"
	"learnstream/server/internal/webhook"
)

const (
	demoStudentEmail = "student@learnstream.local"
	demoAdminEmail   = "admin@learnstream.local"
)

type lessonStore interface {
	lifecycle.LessonStore
	api.LessonCatalog
}

func main() {
	cfg := config.Load()
	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid_config", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func(context.Context) error
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				logger.Warn("close_failed", "error", err.Error())
			}
		}
	}()

	mem := store.NewMemoryStore()
	authSvc := auth.NewService(mem, cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if cfg.SeedDemoUsers {
		if _, err := authSvc.SeedUser(demoStudentEmail, "student123", model.RoleUser); err != nil {
			logger.Error("seed_user_failed", "email", demoStudentEmail, "error", err.Error())
			os.Exit(1)
		}
		if _, err := authSvc.SeedUser(demoAdminEmail, "admin12345", model.RoleAdmin); err != nil {
			logger.Error("seed_user_failed", "email", demoAdminEmail, "error", err.Error())
			os.Exit(1)
		}
	}

	var lessons lessonStore = mem
	var webhookLog api.WebhookLogger = mem
	if cfg.MongoURL != "" {
		ms, err := store.OpenMongoLessonStore(ctx, cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo_connect_failed", "error", err.Error())
			os.Exit(1)
		}
		closers = append(closers, ms.Close)
		lessons = ms
		webhookLog = ms.WebhookLog()
	}

	var enrollments api.EnrollmentChecker = mem
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgresEnrollments(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres_connect_failed", "error", err.Error())
			os.Exit(1)
		}
		closers = append(closers, func(context.Context) error { return pg.Close() })
		enrollments = pg
	}

	var signedCache playback.Cache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		client, err := cache.NewClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis_connect_failed", "error", err.Error())
			os.Exit(1)
		}
		rc := cache.NewRedisCache(client)
		closers = append(closers, func(context.Context) error { return rc.Close() })
		signedCache = rc
	}

	var prov provider.Adapter
	if cfg.HasProviderCredentials() {
		prov = provider.NewClient(provider.ClientConfig{
			BaseURL:     cfg.MuxAPIBase,
			TokenID:     cfg.MuxTokenID,
			TokenSecret: cfg.MuxTokenSecret,
			Timeout:     cfg.RemoteTimeout,
		})
	} else {
		logger.Warn("provider_mock_enabled", "reason", "LEARNSTREAM_PROVIDER_MOCK set without provider credentials")
		prov = provider.NewMockClient()
	}

	var verifier api.SignatureVerifier
	if cfg.WebhookSecret != "" {
		verifier = webhook.NewHMACVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)
	} else {
		logger.Warn("webhook_insecure_dev_mode", "reason", "MUX_WEBHOOK_SECRET not set")
		verifier = webhook.NewDevModeVerifier(logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := events.NewHub()
	srv := api.NewServer(api.Deps{
		Auth:        authSvc,
		Users:       mem,
		Lessons:     lessons,
		Enrollments: enrollments,
		Verifier:    verifier,
		Reconciler:  lifecycle.NewReconciler(lessons, prov, hub, logger, m),
		WebhookLog:  webhookLog,
		Signer: playback.NewSigner(playback.Config{
			Secret:     cfg.SigningSecret,
			StreamHost: cfg.StreamHost,
			URLTTL:     cfg.PlaybackURLTTL,
			CacheTTL:   cfg.PlaybackCacheTTL,
		}, signedCache, logger, m),
		Provider:       prov,
		Hub:            hub,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
		UploadOrigin:   cfg.UploadCORSOrigin,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server_start",
		"addr", cfg.Addr,
		"lesson_store", storeKind(cfg.MongoURL != "", "mongo"),
		"enrollments", storeKind(cfg.DatabaseURL != "", "postgres"),
		"playback_cache", storeKind(cfg.RedisURL != "", "redis"),
		"signing_configured", cfg.SigningSecret != "",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited with error", "error", err.Error())
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err.Error())
		}
	}
}

func storeKind(enabled bool, name string) string {
	if enabled {
		return name
	}
	return "memory"
}
