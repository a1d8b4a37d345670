package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/api/handlers"
	"github.com/medreports/backend/internal/cache/redis"
	"github.com/medreports/backend/internal/confidence"
	"github.com/medreports/backend/internal/llm"
	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/middleware/ratelimit"
	"github.com/medreports/backend/internal/middleware/security"
	"github.com/medreports/backend/internal/middleware/validation"
	"github.com/medreports/backend/internal/nlquery"
	"github.com/medreports/backend/internal/search"
	"github.com/medreports/backend/internal/storage/sqlite"
	"github.com/medreports/backend/internal/synonyms"
	"github.com/medreports/backend/pkg/config"
	appLogger "github.com/medreports/backend/pkg/logger"
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

	appLogger.Info("Starting medical reports API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	synonymTable, err := synonyms.Load()
	if err != nil {
		appLogger.Fatal("Failed to load synonym dictionary", zap.Error(err))
	}
	appLogger.Info("Synonym dictionary loaded",
		zap.Int("parameters", synonymTable.ParameterCount()),
		zap.Int("categories", synonymTable.CategoryCount()),
	)

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	translator := nlquery.NewTranslator(llmClient, synonymTable)
	searchEngine := search.NewEngine(sqliteClient)
	scorer := confidence.NewScorer(cfg.Confidence.Weights)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	searchHandler := handlers.NewSearchHandler(translator, searchEngine, sqliteClient)
	confidenceHandler := handlers.NewConfidenceHandler(scorer, sqliteClient, cacheClient)
	reportHandler := handlers.NewReportHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/search", searchHandler.HandleSearch)
	api.Get("/search/history", searchHandler.GetSearchHistory)

	api.Post("/reports", reportHandler.IngestReport)
	api.Post("/reports/:reportId/confidence", confidenceHandler.GenerateScore)
	api.Get("/reports/:reportId/confidence", confidenceHandler.GetScore)

	api.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
