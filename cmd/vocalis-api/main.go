// Package main is the entry point for the vocalis-api server.
// Balances, contracts and recharges live with Metronome; the local database
// only holds users and their selected plan.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/database"
	"github.com/jmylchreest/vocalis-api/internal/http/handlers"
	"github.com/jmylchreest/vocalis-api/internal/http/mw"
	"github.com/jmylchreest/vocalis-api/internal/http/routes"
	"github.com/jmylchreest/vocalis-api/internal/logging"
	"github.com/jmylchreest/vocalis-api/internal/metrics"
	"github.com/jmylchreest/vocalis-api/internal/repository"
	"github.com/jmylchreest/vocalis-api/internal/service"
	"github.com/jmylchreest/vocalis-api/internal/shutdown"
	"github.com/jmylchreest/vocalis-api/internal/version"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting vocalis-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if schemaVersion, err := database.SchemaVersion(db); err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	repos := repository.NewRepositories(db)
	m := metrics.New(v.Version, v.Commit)

	services, err := service.NewServices(cfg, repos, m, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	if !cfg.MetronomeConfigured() {
		logger.Warn("billing provider not configured, see /api/health/integrations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	services.Tasks.Start(ctx)
	go services.Retention.Run(ctx)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.LogContext)

	// Log filters are hot-reloaded from object storage when it is configured.
	var logFiltersLoader *mw.LogFiltersLoader
	if services.Storage.IsEnabled() {
		logFiltersLoader = mw.NewLogFiltersLoader(mw.LogFiltersConfig{
			Client: services.Storage.Client(),
			Bucket: services.Storage.Bucket(),
			Key:    cfg.LogFiltersKey,
			Logger: logger,
		})
		logFiltersLoader.Start(ctx)
	}

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(mw.APIVersion())

	// Streams and webhooks manage their own deadlines.
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:      30 * time.Second,
		SkipPatterns: []string{"/api/notifications/stream", "/api/webhooks"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-API-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(mw.RateLimit(cfg.RateLimitPerMinute))
	router.Use(mw.Concurrency(100))

	// Open streams and queued emails keep the instance alive.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:      cfg.IdleTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz", "/health", "/metrics"},
		BackgroundWorkCheck: func() bool {
			return services.Hub.ActiveCount() > 0 || services.Tasks.Busy()
		},
	})
	router.Use(idleMonitor.Middleware)

	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))

	notifications := handlers.NewNotificationsHandler(services.Hub, logger)
	routes.Register(api, &routes.Handlers{
		HealthCheck:   handlers.HealthCheck,
		Livez:         handlers.Livez,
		Readyz:        handlers.NewReadyzHandler(db).Readyz,
		Integrations:  handlers.NewIntegrationsHandler(services.Integrations),
		Auth:          handlers.NewAuthHandler(services.Accounts, logger),
		Billing:       handlers.NewBillingHandler(services.Plans, services.Balances, logger),
		Usage:         handlers.NewUsageHandler(services.Usage, logger),
		Notifications: notifications,
	})

	// Mounted after Register so the raw handler replaces the documented
	// placeholder for the same path.
	router.Get("/api/notifications/stream/{customer_id}", notifications.Stream)

	var archive handlers.WebhookArchiver
	if cfg.ArchiveWebhooks {
		archive = services.Storage
	}
	webhook := handlers.NewMetronomeWebhookHandler(handlers.MetronomeWebhookConfig{
		Verifier:   services.Webhooks,
		Recharge:   services.Recharge,
		Onboarding: services.Onboarding,
		Archive:    archive,
		Tasks:      services.Tasks,
		Observer:   m,
		Logger:     logger,
	})
	router.Route("/api/webhooks/metronome", func(r chi.Router) {
		r.Post("/", webhook.HandleWebhook)
		for _, category := range []string{"alerts", "invoices", "payments", "contracts"} {
			r.Post("/"+category, webhook.HandleCategory(category))
		}
		// Legacy single-purpose endpoints
		r.Post("/auto-recharge", webhook.HandleWebhook)
		r.Post("/balance-update", webhook.HandleWebhook)
	})

	router.Method(http.MethodGet, "/metrics", m.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	idleMonitor.Start()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sigChan:
			logger.Info("shutting down server", "signal", sig.String())
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle timeout")
		}

		idleMonitor.Stop()
		if logFiltersLoader != nil {
			logFiltersLoader.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		// Drain queued emails and archives after requests stop arriving.
		cancel()
		services.Tasks.Stop()
	}()

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"payment_mode", cfg.PaymentMode,
		"webhook_signatures", services.Webhooks != nil,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
