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
	"storygen/internal/http/handlers"
	httpapi "storygen/internal/http/httpapi"
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

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
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
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	geminiAPIKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if geminiAPIKey == "" {
		credStore := credentials.NewStore(dbpool)
		keyFromStore, err := credStore.GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load gemini api key from store")
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
		logger.Fatal().Err(err).Msg("failed to configure gemini client")
	}
	if geminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("gemini api key missing, using synthetic asset generation")
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

	app := handlers.NewApp(orchestrator, manager, fileStore, cfg, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	// Let in-flight generations record their terminal state before exit.
	dispatcher.Close()
	logger.Info().Msg("api stopped")
}
