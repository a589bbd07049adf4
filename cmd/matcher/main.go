package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"job-matcher/internal/config"
	"job-matcher/internal/logger"
	"job-matcher/internal/repositories"
	"job-matcher/internal/services"
)

// One-shot batch runner: processes every eligible job and exits. SIGINT
// triggers a cooperative stop, so the checkpoint stays resumable.
func main() {
	cfg := config.Load()

	development := cfg.Server.Env == "development"
	zapLogger, err := logger.New(!development, development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}

	jobRepo := repositories.NewJobRepository(db)
	resumeRepo := repositories.NewResumeRepository(db)
	outcomeRepo := repositories.NewOutcomeRepository(db)
	checkpointRepo := repositories.NewCheckpointRepository(db)

	ctx := context.Background()
	geminiService, err := services.NewGeminiService(ctx, &cfg.Gemini)
	if err != nil {
		zapLogger.Fatal("failed to initialize Gemini AI", zap.Error(err))
	}

	qdrantService, err := services.NewQdrantService(&cfg.Qdrant)
	if err != nil {
		zapLogger.Fatal("failed to initialize Qdrant", zap.Error(err))
	}
	if err := qdrantService.InitCollection(ctx); err != nil {
		zapLogger.Fatal("failed to initialize Qdrant collection", zap.Error(err))
	}

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		zapLogger.Info("stop requested, finishing in-flight jobs")
		engine.Stop()
	}()

	summary, err := engine.Run(ctx)
	if err != nil {
		zapLogger.Fatal("run failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		zapLogger.Fatal("failed to render summary", zap.Error(err))
	}
	fmt.Println(string(out))

	if summary.Errors > 0 {
		os.Exit(1)
	}
}
