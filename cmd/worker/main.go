// The worker binary runs the reply-generation loop on its own, for
// deployments that scale generation independently of the API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gemchat/internal"
	"gemchat/internal/ai"
	"gemchat/internal/ai/gemini"
	"gemchat/internal/ai/mock"
	"gemchat/internal/jobs"
	"gemchat/internal/queue"
	"gemchat/internal/store"
	"gemchat/internal/worker"
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer rdb.Close()

	st := store.New(db)
	q := queue.New(rdb, cfg.QueueName)

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	handler := jobs.NewGenerateReplyHandler(st, provider, cfg.AIMaxOutputTokens, logger)

	workerCfg := worker.DefaultConfig()
	workerCfg.RetryBackoff = cfg.WorkerRetryBackoff
	w, err := worker.New(q, handler, workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}

	w.Start(ctx)
	logger.Info("Generation worker running", "queue", cfg.QueueName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, finishing current job...")
	w.Stop()
	logger.Info("Worker exited")
	return nil
}

func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	if cfg.AIProvider == "gemini" {
		return gemini.New(gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			ProviderConfig: ai.ProviderConfig{
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
	}
	return mock.New(logger), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
