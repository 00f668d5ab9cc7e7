// Package main is the entrypoint for the RightsDesk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/rightsdesk/internal/api"
	"github.com/kiranshivaraju/rightsdesk/internal/api/handler"
	mw "github.com/kiranshivaraju/rightsdesk/internal/api/middleware"
	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/assistant"
	"github.com/kiranshivaraju/rightsdesk/internal/cache"
	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/config"
	"github.com/kiranshivaraju/rightsdesk/internal/conversation"
	"github.com/kiranshivaraju/rightsdesk/internal/events"
	"github.com/kiranshivaraju/rightsdesk/internal/metrics"
	"github.com/kiranshivaraju/rightsdesk/internal/notify"
	"github.com/kiranshivaraju/rightsdesk/internal/pipeline"
	"github.com/kiranshivaraju/rightsdesk/internal/ratelimit"
	"github.com/kiranshivaraju/rightsdesk/internal/recorder"
	"github.com/kiranshivaraju/rightsdesk/internal/rights"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/internal/session"
	"github.com/kiranshivaraju/rightsdesk/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast when invalid
	cfg, err := config.LoadFile(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "assistant_provider", cfg.Assistant.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Load catalog and create the assistant responder
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	responder, err := assistant.NewResponder(cfg.Assistant, cat)
	if err != nil {
		return fmt.Errorf("create assistant responder: %w", err)
	}
	slog.Info("assistant initialized", "provider", responder.Name())

	// 6. Metrics and the event archive
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	pgStore := store.NewPostgresStore(pool)
	rec := recorder.New(pgStore, redisCache, notify.NewLogNotifier(slog.Default()),
		recorder.WithQueueSize(cfg.Recorder.QueueSize),
		recorder.WithDropHook(func() { m.Dropped(metrics.DropRecorder) }),
	)
	rec.Start()

	// 7. Scheduler and sessions
	loop := sched.NewLoop(nil)
	sessions := session.NewManager(session.Config{
		Pipeline: pipeline.Config{
			TickStep:     cfg.Analysis.TickStep,
			TickInterval: cfg.Analysis.TickInterval,
		},
		Conversation: conversation.Config{
			ReplyDelay:   cfg.Chat.ReplyDelay,
			ConfirmDelay: cfg.Chat.ConfirmDelay,
			NotifyWindow: cfg.Chat.NotifyWindow,
		},
		IdleTTL:       cfg.Session.IdleTTL,
		SubmitsPerSec: cfg.Chat.SubmitsPerSec,
		SubmitBurst:   cfg.Chat.SubmitBurst,
	}, loop, session.Deps{
		Catalog:          cat,
		Classifier:       rights.NewClassifier(cat.Registry(), cfg.Analysis.ReviewWindow, loop.Now),
		Explainer:        assistant.NewService(responder, cfg.Assistant.Timeout),
		Sinks:            []events.Sink{rec, m},
		OnSubscriberDrop: func() { m.Dropped(metrics.DropSubscriber) },
	})
	if err := sessions.Start(); err != nil {
		loop.Close()
		return fmt.Errorf("start session manager: %w", err)
	}

	// 8. Build router with dependencies
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin,
		ratelimit.PerMinute(cfg.Server.RateLimitPerMin, ratelimit.DefaultIdleTTL))

	deps := api.Dependencies{
		RateLimit: rateLimit,
		Metrics:   m,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: metrics.Handler(reg),

		ListAppsHandler:    handler.NewListAppsHandler(cat),
		ListPromptsHandler: handler.NewListPromptsHandler(cat),

		CreateSessionHandler: handler.NewCreateSessionHandler(sessions),
		GetSessionHandler:    handler.NewGetSessionHandler(sessions),
		CloseSessionHandler:  handler.NewCloseSessionHandler(sessions),

		SubmitMessageHandler: handler.NewSubmitMessageHandler(sessions),
		TranscriptHandler:    handler.NewTranscriptHandler(sessions, pgStore),

		SubmitAssetHandler: handler.NewSubmitAssetHandler(sessions),
		ListAssetsHandler:  handler.NewListAssetsHandler(sessions, pgStore),

		GetRunHandler:    handler.NewGetRunHandler(sessions, redisCache, pgStore),
		CancelRunHandler: handler.NewCancelRunHandler(sessions),

		EventsHandler: handler.NewEventsHandler(sessions, handler.DefaultKeepAlive),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the sessions ends open event streams, which Shutdown would otherwise wait on.
	sessionsClosed := make(chan struct{})
	srv.RegisterOnShutdown(func() {
		defer close(sessionsClosed)
		if err := sessions.Shutdown(shutdownCtx); err != nil {
			slog.Warn("closing sessions", "error", err)
		}
	})

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	select {
	case <-sessionsClosed:
	case <-shutdownCtx.Done():
	}
	loop.Close()

	if err := rec.Close(shutdownCtx); err != nil {
		slog.Warn("event archive not fully drained", "error", err, "dropped", rec.Dropped())
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, response.CodeDegraded,
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
