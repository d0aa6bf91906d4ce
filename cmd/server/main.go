package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gemchat/internal"
	"gemchat/internal/ai"
	"gemchat/internal/ai/gemini"
	"gemchat/internal/ai/mock"
	"gemchat/internal/auth"
	"gemchat/internal/billing"
	"gemchat/internal/handler"
	"gemchat/internal/jobs"
	"gemchat/internal/metrics"
	"gemchat/internal/middleware"
	"gemchat/internal/queue"
	"gemchat/internal/reconciler"
	"gemchat/internal/service"
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

	// Postgres
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	logger.Info("Database ready")

	// Redis (queue + cache)
	rdb, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer rdb.Close()

	st := store.New(db)
	q := queue.New(rdb, cfg.QueueName)
	cache := store.NewCache(rdb)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		return err
	}

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	billingSvc := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Services
	userService := service.NewUserService(st, tokens, cfg.OTPExpiration, logger)
	chatroomService := service.NewChatroomService(st, q, cache, cfg.ChatroomCacheTTL, cfg.BasicTierDailyPromptLimit, logger)
	subscriptionService := service.NewSubscriptionService(st, billingSvc, service.CheckoutConfig{
		ProPriceID: cfg.StripeProPriceID,
		ClientURL:  cfg.ClientURL,
	}, logger)
	rec := reconciler.New(st, billingSvc, logger)

	// Middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(tokens, st, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	otpLimiter := middleware.NewRateLimiter(10, time.Minute, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(userService, logger)
	chatroomHandler := handler.NewChatroomHandler(chatroomService, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, logger)
	webhookHandler := handler.NewWebhookHandler(billingSvc, rec, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metricsAuth(cfg, promhttp.Handler()))

	// Auth (public); OTP endpoints sit behind the per-IP limiter.
	mux.HandleFunc("POST /api/v1/auth/signup", authHandler.Signup)
	mux.Handle("POST /api/v1/auth/send-otp", otpLimiter.Handler(http.HandlerFunc(authHandler.SendOTP)))
	mux.Handle("POST /api/v1/auth/verify-otp", otpLimiter.Handler(http.HandlerFunc(authHandler.VerifyOTP)))
	mux.Handle("POST /api/v1/auth/forgot-password", otpLimiter.Handler(http.HandlerFunc(authHandler.ForgotPassword)))

	// Auth (protected)
	mux.Handle("POST /api/v1/auth/change-password", authMw.RequireAuth(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/v1/auth/me", authMw.RequireAuth(http.HandlerFunc(authHandler.Me)))

	// Chatrooms (protected)
	mux.Handle("POST /api/v1/chatroom", authMw.RequireAuth(http.HandlerFunc(chatroomHandler.Create)))
	mux.Handle("GET /api/v1/chatroom", authMw.RequireAuth(http.HandlerFunc(chatroomHandler.List)))
	mux.Handle("GET /api/v1/chatroom/{id}", authMw.RequireAuth(http.HandlerFunc(chatroomHandler.Get)))
	mux.Handle("POST /api/v1/chatroom/{id}/message", authMw.RequireAuth(http.HandlerFunc(chatroomHandler.SendMessage)))

	// Billing
	mux.HandleFunc("POST /api/v1/webhook/stripe", webhookHandler.HandleStripe)
	mux.Handle("POST /api/v1/subscribe/pro", authMw.RequireAuth(http.HandlerFunc(subscriptionHandler.SubscribePro)))
	mux.Handle("GET /api/v1/subscription/status", authMw.RequireAuth(http.HandlerFunc(subscriptionHandler.Status)))

	root := securityMw.Handler(loggingMw.Handler(metrics.Middleware(mux)))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Optional in-process generation worker; deployments that scale the
	// worker separately run cmd/worker instead.
	var w *worker.Worker
	if cfg.WorkerEnabled {
		handlerImpl := jobs.NewGenerateReplyHandler(st, provider, cfg.AIMaxOutputTokens, logger)
		workerCfg := worker.DefaultConfig()
		workerCfg.RetryBackoff = cfg.WorkerRetryBackoff
		w, err = worker.New(q, handlerImpl, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Start(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if w != nil {
		w.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider selects the configured reply generator.
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

// metricsAuth wraps the metrics endpoint with basic auth when credentials are
// configured.
func metricsAuth(cfg *internal.Config, next http.Handler) http.Handler {
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(cfg.MetricsUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.MetricsPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
