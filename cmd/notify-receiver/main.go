package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/config"
	"github.com/insider-one/notifications-go-client/internal/domain"
	"github.com/insider-one/notifications-go-client/internal/handler"
	"github.com/insider-one/notifications-go-client/internal/middleware"
	"github.com/insider-one/notifications-go-client/internal/repository/postgres"
	"github.com/insider-one/notifications-go-client/internal/repository/redis"
	"github.com/insider-one/notifications-go-client/internal/service"
	"github.com/insider-one/notifications-go-client/internal/worker"
)

// @title Notify Callback Receiver API
// @version 1.0
// @description Stores GOV.UK Notify delivery receipts and received text messages
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@insider.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting notify receiver",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
		"version", notify.Version,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize the Notify client. Every replica shares one rate limit per key.
	probe, err := notify.New(cfg.Notify.APIKey)
	if err != nil {
		logger.Error("invalid Notify API key", "error", err)
		os.Exit(1)
	}
	rateLimiter := redis.NewRateLimiter(redisClient, probe.ServiceID(), cfg.Notify.RateLimitPerSec)

	client, err := notify.New(cfg.Notify.APIKey,
		notify.WithBaseURL(cfg.Notify.BaseURL),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithLogger(logger),
		notify.WithLimiter(rateLimiter),
		notify.WithMetrics(registry),
	)
	if err != nil {
		logger.Error("failed to create Notify client", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	statusRepo := postgres.NewStatusRepository(db)
	receivedTextRepo := postgres.NewReceivedTextRepository(db)
	statusCache := redis.NewStatusCache(redisClient, cfg.Redis.StatusTTL)

	// Initialize services
	metrics := handler.NewMetrics(registry)
	receiptService := service.NewReceiptService(statusRepo, receivedTextRepo, statusCache, client, logger)
	receiptService.SetRecorder(metrics)
	templateService := service.NewTemplateService(client, logger)

	// Initialize WebSocket hub
	wsHub := handler.NewWebSocketHub(logger)
	go wsHub.Run(ctx)

	receiptService.SetStatusBroadcast(func(s *domain.DeliveryStatus) {
		wsHub.BroadcastStatus(s)
	})

	reconciler := worker.NewReconciler(statusRepo, receiptService, logger, cfg.Reconciler)

	// Initialize handlers
	callbackHandler := handler.NewCallbackHandler(receiptService)
	notificationHandler := handler.NewNotificationHandler(receiptService)
	templateHandler := handler.NewTemplateHandler(templateService)
	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("postgres", db)
	healthHandler.AddChecker("redis", redisClient)
	healthHandler.AddOptionalChecker("notify", notifyChecker(client))

	metricsHandler := handler.NewMetricsHandler(metrics, registry, rateLimiter, wsHub)
	wsHandler := handler.NewWebSocketHandler(wsHub, cfg.Server.AllowedOrigins)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, metrics))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoints
	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/realtime", metricsHandler.RealtimeMetrics)

	// WebSocket endpoint
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Notify callbacks
	r.Route("/callbacks", func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.Callback.BearerToken, logger))
		callbackHandler.RegisterRoutes(r)
	})

	// Read API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.CorrelationIDHeader},
			ExposedHeaders: []string{middleware.CorrelationIDHeader},
			MaxAge:         300,
		}))

		r.Route("/notifications", notificationHandler.RegisterRoutes)
		r.Get("/received-texts", notificationHandler.ListReceivedTexts)
		r.Route("/templates", templateHandler.RegisterRoutes)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("failed to start reconciler", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting callbacks first so none are lost mid-write
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	reconciler.Stop()

	// Cancel context, closing WebSocket clients
	cancel()

	logger.Info("server stopped")
}

// notifyChecker reports whether Notify is reachable and accepts the key.
// Looking up the nil UUID answers 404 when both hold.
func notifyChecker(client *notify.Client) handler.CheckerFunc {
	return func(ctx context.Context) error {
		_, err := client.GetNotificationByID(ctx, uuid.Nil.String())
		var notFound *notify.NotFoundError
		if err == nil || errors.As(err, &notFound) {
			return nil
		}
		return err
	}
}
