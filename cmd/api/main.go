package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"job-matcher/internal/config"
	"job-matcher/internal/handlers"
	"job-matcher/internal/logger"
	"job-matcher/internal/repositories"
	"job-matcher/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	development := cfg.Server.Env == "development"
	zapLogger, err := logger.New(!development, development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("config loaded", zap.String("env", cfg.Server.Env))

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Initialize repositories
	jobRepo := repositories.NewJobRepository(db)
	resumeRepo := repositories.NewResumeRepository(db)
	outcomeRepo := repositories.NewOutcomeRepository(db)
	checkpointRepo := repositories.NewCheckpointRepository(db)

	// Initialize Gemini AI
	ctx := context.Background()
	geminiService, err := services.NewGeminiService(ctx, &cfg.Gemini)
	if err != nil {
		zapLogger.Fatal("failed to initialize Gemini AI", zap.Error(err))
	}

	// Initialize Qdrant
	qdrantService, err := services.NewQdrantService(&cfg.Qdrant)
	if err != nil {
		zapLogger.Fatal("failed to initialize Qdrant", zap.Error(err))
	}
	if err := qdrantService.InitCollection(ctx); err != nil {
		zapLogger.Fatal("failed to initialize Qdrant collection", zap.Error(err))
	}

	// Initialize the matching pipeline
	cache := services.NewResumeCache(cfg.Matcher.CacheTTL, zapLogger)
	filter := services.NewCandidateFilter(resumeRepo, cache, cfg.Matcher.CategoryFilter, zapLogger)
	search := services.NewSimilaritySearch(
		qdrantService,
		cfg.Matcher.TopK,
		cfg.Matcher.SimilarityThreshold,
		zapLogger,
	)
	validator := services.NewValidator(
		geminiService,
		cfg.Matcher.ValidationThreshold,
		cfg.Matcher.RetryMaxAttempts,
		cfg.Matcher.RetryInitialDelay,
		cfg.Gemini.Timeout,
		zapLogger,
	)
	progress := services.NewProgressTracker(outcomeRepo)
	checkpoints := services.NewCheckpointManager(
		checkpointRepo,
		services.RunFingerprint(&cfg.Matcher),
		cfg.Matcher.CheckpointInterval,
		zapLogger,
	)

	engine := services.NewMatchEngine(
		cfg.Matcher,
		jobRepo,
		outcomeRepo,
		filter,
		search,
		validator,
		cache,
		progress,
		checkpoints,
		zapLogger,
	)
	zapLogger.Info("matching engine initialized",
		zap.Int("workers", cfg.Matcher.MaxWorkers),
		zap.Int("top_k", cfg.Matcher.TopK),
	)

	// Initialize handlers
	runHandler := handlers.NewRunHandler(engine, zapLogger)
	resultHandler := handlers.NewResultHandler(jobRepo, outcomeRepo)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Job Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// API endpoints
	api.Post("/runs", runHandler.HandleStartRun)
	api.Get("/runs", runHandler.HandleGetRun)
	api.Delete("/runs", runHandler.HandleStopRun)
	api.Get("/results/:job_id", resultHandler.HandleGetResult)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Job Matcher API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/runs",
				"GET /api/v1/runs",
				"DELETE /api/v1/runs",
				"GET /api/v1/results/:job_id",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zapLogger.Info("shutting down server")
		engine.Stop()
		if err := app.Shutdown(); err != nil {
			zapLogger.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zapLogger.Info("server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
