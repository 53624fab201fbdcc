package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storygen/internal/adapter/repo"
	"storygen/internal/generation"
	"storygen/internal/infra"
	"storygen/internal/infra/credentials"
	"storygen/internal/providers/genai"
	"storygen/internal/providers/image"
	"storygen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	geminiAPIKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if geminiAPIKey == "" {
		credStore := credentials.NewStore(dbpool)
		keyFromStore, err := credStore.GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load gemini api key from store")
		} else {
			geminiAPIKey = keyFromStore
		}
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     geminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if geminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("worker: gemini api key missing, using synthetic asset generation")
	}

	jobRepo := repo.NewJobRepository(dbpool)
	manager := generation.NewManager(jobRepo, logger)
	resolver := generation.NewResolver(jobRepo, logger)
	dispatcher := generation.NewDispatcher(cfg.WorkerConcurrency, logger)
	orchestrator := generation.NewOrchestrator(
		manager,
		resolver,
		image.NewGeminiGenerator(geminiClient),
		dispatcher,
		fileStore,
		cfg.StorageBaseURL,
		logger,
	)

	sweeper := generation.NewSweeper(
		jobRepo,
		manager,
		orchestrator,
		cfg.JobClaimAfter,
		cfg.JobStaleAfter,
		cfg.SweepInterval,
		logger,
	)

	logger.Info().
		Dur("claim_after", cfg.JobClaimAfter).
		Dur("stale_after", cfg.JobStaleAfter).
		Dur("interval", cfg.SweepInterval).
		Msg("worker: started")

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	dispatcher.Close()
	logger.Info().Msg("worker: stopped")
}
