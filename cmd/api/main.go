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
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/api/handlers"
	rediscache "github.com/kbchat/backend/internal/cache/redis"
	"github.com/kbchat/backend/internal/chat"
	"github.com/kbchat/backend/internal/chat/session"
	"github.com/kbchat/backend/internal/ingestion"
	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/internal/metrics"
	"github.com/kbchat/backend/internal/middleware/ratelimit"
	"github.com/kbchat/backend/internal/middleware/security"
	"github.com/kbchat/backend/internal/middleware/validation"
	"github.com/kbchat/backend/internal/storage/sqlite"
	"github.com/kbchat/backend/pkg/config"
	appLogger "github.com/kbchat/backend/pkg/logger"
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

	appLogger.Info("Starting knowledge-base chat API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := rediscache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	sessions := session.NewManager(redisClient, llmClient)
	processor := ingestion.NewProcessor(sqliteClient, llmClient, cfg.Ingest.MaxParallelEmbeds)

	policy := chat.Policy{
		AnswerThreshold: cfg.Chat.AnswerThreshold,
		HighThreshold:   cfg.Chat.HighThreshold,
		MaxSuggestions:  cfg.Chat.MaxSuggestions,
		MaxCandidates:   cfg.Chat.MaxCandidates,
	}
	cacheTTL := time.Duration(cfg.Chat.EmbeddingCacheTTLMin) * time.Minute
	engine := chat.NewEngine(llmClient, sqliteClient, redisClient, sessions, policy, cacheTTL)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	requestTimeout := time.Duration(cfg.Chat.RequestTimeoutSec) * time.Second

	searchHandler := handlers.NewSearchHandler(engine, sqliteClient, requestTimeout)
	documentHandler := handlers.NewDocumentHandler(processor)
	tenantHandler := handlers.NewTenantHandler(sqliteClient, cfg.LLM.EmbeddingModel)
	sessionHandler := handlers.NewSessionHandler(redisClient)
	wsHandler := handlers.NewWebSocketHandler(engine, requestTimeout)

	api := app.Group("/api/v1")

	api.Post("/search", searchHandler.HandleSearch)
	api.Post("/priority-questions", searchHandler.HandlePriorityQuestions)

	api.Post("/documents", documentHandler.UploadDocument)

	api.Post("/tenants", tenantHandler.CreateTenant)
	api.Get("/tenants", tenantHandler.ListTenants)
	api.Get("/tenants/:tenantId", tenantHandler.GetTenant)
	api.Delete("/tenants/:tenantId", tenantHandler.DeleteTenant)
	api.Get("/tenants/:tenantId/history", searchHandler.GetQueryHistory)

	api.Get("/tenants/:tenantId/sessions/:sessionId", sessionHandler.GetSession)
	api.Delete("/tenants/:tenantId/sessions/:sessionId", sessionHandler.DeleteSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

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
