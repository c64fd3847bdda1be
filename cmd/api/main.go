package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/internal/api"
	"github.com/genetics-tutor/backend/internal/api/handlers"
	rediscache "github.com/genetics-tutor/backend/internal/cache/redis"
	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/internal/ingestion"
	"github.com/genetics-tutor/backend/internal/knowledge"
	"github.com/genetics-tutor/backend/internal/llm"
	"github.com/genetics-tutor/backend/internal/memory"
	"github.com/genetics-tutor/backend/internal/metrics"
	"github.com/genetics-tutor/backend/internal/middleware/ratelimit"
	"github.com/genetics-tutor/backend/internal/response"
	"github.com/genetics-tutor/backend/internal/storage/sqlite"
	"github.com/genetics-tutor/backend/internal/tutor"
	"github.com/genetics-tutor/backend/pkg/config"
	appLogger "github.com/genetics-tutor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Genetics Tutor API Server")

	metrics.Init()

	topics := catalog.Default()
	if cfg.Tutor.CatalogDir != "" {
		extra, err := ingestion.NewProcessor().LoadDir(cfg.Tutor.CatalogDir)
		if err != nil {
			appLogger.Fatal("Failed to load topic sheets", zap.String("dir", cfg.Tutor.CatalogDir), zap.Error(err))
		}
		topics, err = topics.Merge(extra...)
		if err != nil {
			appLogger.Fatal("Failed to merge topic sheets", zap.Error(err))
		}
	}
	metrics.CatalogTopics.Set(float64(topics.Len()))
	appLogger.Info("Topic catalog loaded", zap.Int("topics", topics.Len()))

	readyChecks := map[string]handlers.ReadyCheck{}
	var opts []tutor.Option

	var store memory.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path, cfg.Tutor.HistoryCap)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}

		store = sqliteClient
		opts = append(opts, tutor.WithRecorder(sqliteClient))
		readyChecks["sqlite"] = sqliteClient.Ping
	default:
		store = memory.NewInMemoryStore(cfg.Tutor.HistoryCap)
	}

	if cfg.Redis.Enabled {
		redisClient, err := rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, answer cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			if cfg.Tutor.CatalogDir != "" {
				if err := redisClient.InvalidateAnswers(context.Background()); err != nil {
					appLogger.Warn("Failed to invalidate cached answers", zap.Error(err))
				}
			}
			opts = append(opts, tutor.WithAnswerCache(redisClient))
			readyChecks["redis"] = redisClient.Ping
		}
	}

	if cfg.LLMEnabled() {
		opts = append(opts, tutor.WithCompleter(newCompleter(cfg.LLM)))
		appLogger.Info("Completion collaborator enabled",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
		)
	}

	selector := response.NewSelector(topics, response.Options{
		Mode:          response.Mode(cfg.Tutor.SelectionMode),
		SimplifyBelow: cfg.Tutor.SimplifyBelow,
		AdvancedAbove: cfg.Tutor.AdvancedAbove,
	})
	estimator := knowledge.NewEstimator(
		knowledge.NewKeywordClassifier(),
		knowledge.NewMarkerScorer(cfg.Tutor.LookbackTurns),
	)

	engine := tutor.NewEngine(store, selector, estimator, tutor.Config{
		HistoryCap:   cfg.Tutor.HistoryCap,
		ContextLimit: cfg.Tutor.ContextLimit,
		ConceptDelta: cfg.Tutor.ConceptDelta,
		DefaultLevel: cfg.Tutor.DefaultLevel,
		LLMTimeout:   time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	}, opts...)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app := api.NewApp(api.Deps{
		Engine:           engine,
		Catalog:          topics,
		ReadyChecks:      readyChecks,
		RateLimiter:      limiter,
		ReadTimeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:     time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:        cfg.Server.BodyLimit,
		MaxMessageLength: cfg.RateLimit.MaxMessageLength,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Development:      cfg.Server.Development,
		RequestLogging:   true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func newCompleter(cfg config.LLMConfig) tutor.Completer {
	opts := llm.Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}

	if cfg.Provider == "anthropic" {
		if opts.Model == llm.DefaultOpenAIModel {
			opts.Model = llm.DefaultAnthropicModel
		}
		return llm.NewAnthropicClient(opts)
	}
	return llm.NewClient(opts)
}
