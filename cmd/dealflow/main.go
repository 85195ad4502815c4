package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/config"
	"github.com/AnsKM/dealflow-crm/internal/handler"
	"github.com/AnsKM/dealflow-crm/internal/infra/cache"
	"github.com/AnsKM/dealflow-crm/internal/infra/client"
	"github.com/AnsKM/dealflow-crm/internal/infra/events"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/infra/resilience"
	"github.com/AnsKM/dealflow-crm/internal/infra/store"
	"github.com/AnsKM/dealflow-crm/internal/insights"
	"github.com/AnsKM/dealflow-crm/internal/port"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("llm", cfg.GeminiAPIKey != ""),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("recommendation_cache_ttl", cfg.RecommendationCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Int("health_alert_threshold", cfg.HealthAlertThreshold),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is empty, every inbound webhook will be rejected")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "dealflow-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Database ---
	db, err := store.Open(store.Config{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		SlowThreshold:   cfg.DBSlowQuery,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	st := store.New(db, logger)
	defer st.Close()

	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := st.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		logger.Info("database schema migrated")
	}

	pingers := []port.Pinger{st}

	// --- Cache & events ---
	var recCache port.Cache[[]string]
	var publisher port.EventPublisher

	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		recCache = cache.NewRedis[[]string](rdb, "dealflow:recs:", cfg.RecommendationCacheTTL, logger)
		publisher = events.NewRedisPublisher(rdb, cfg.EventsChannel, metrics, logger)
		pingers = append(pingers, cache.NewRedisPinger(rdb))
		logger.Info("redis enabled", zap.String("events_channel", cfg.EventsChannel))
	} else {
		memCache := cache.New[[]string](cfg.RecommendationCacheTTL)
		defer memCache.Close()

		recCache = memCache
		publisher = events.NewLogPublisher(logger)
		logger.Info("redis not configured, using in-memory cache and log publisher")
	}

	// --- LLM ---
	var llm port.Recommender
	if cfg.GeminiAPIKey != "" {
		llm = client.NewGeminiClient(
			client.GeminiConfig{
				BaseURL: cfg.GeminiBaseURL,
				APIKey:  cfg.GeminiAPIKey,
				Model:   cfg.GeminiModel,
				Timeout: cfg.HTTPTimeout,
			},
			resilience.NewCircuitBreaker("gemini"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			metrics,
		)
	} else {
		logger.Warn("GEMINI_API_KEY not set, next actions use stage defaults")
	}

	// --- Services ---
	recs := service.NewRecommendations(llm, recCache, metrics, logger)
	authSvc := service.NewAuthService(st, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	dealSvc := service.NewDealService(st, recs, publisher, service.DealConfig{
		HealthAlertThreshold: cfg.HealthAlertThreshold,
		EnrichConcurrency:    cfg.EnrichConcurrency,
	}, metrics, logger)
	activitySvc := service.NewActivityService(st, metrics, logger)
	webhookSvc := service.NewWebhookService(st, cfg.WebhookSecret, metrics, logger)
	aggregator := insights.NewAggregator(st, cfg.Insights, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:        authSvc,
		Deals:       dealSvc,
		Activities:  activitySvc,
		Webhooks:    webhookSvc,
		Insights:    aggregator,
		Pingers:     pingers,
		CORSOrigins: cfg.CORSOrigins,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
