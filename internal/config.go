package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Postgres
	DatabaseURL string

	// Redis (queue + cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Queue / worker
	QueueName          string
	WorkerRetryBackoff time.Duration

	// Quota
	BasicTierDailyPromptLimit int

	// Chatroom list cache
	ChatroomCacheTTL time.Duration

	// Auth
	JWTSecret     string
	OTPExpiration time.Duration

	// AI provider
	AIProvider        string // "gemini" or "mock"
	GeminiAPIKey      string
	GeminiModel       string
	AIMaxOutputTokens int
	AIRequestTimeout  time.Duration

	// Stripe billing (optional -- billing endpoints are stubs without these)
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeProPriceID    string
	ClientURL           string

	// Run the generation worker inside the server process. The standalone
	// cmd/worker binary ignores this and always runs the loop.
	WorkerEnabled bool

	// Metrics endpoint authentication; unprotected when both are empty.
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QueueName:          getEnv("QUEUE_NAME", "gemini_message_queue"),
		WorkerRetryBackoff: getEnvDuration("WORKER_RETRY_BACKOFF", 1*time.Second),

		BasicTierDailyPromptLimit: getEnvInt("BASIC_TIER_DAILY_PROMPT_LIMIT", 50),

		ChatroomCacheTTL: getEnvDuration("CHATROOM_LIST_CACHE_TTL", 480*time.Second),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		OTPExpiration: getEnvDuration("OTP_EXPIRATION", 5*time.Minute),

		AIProvider:        getEnv("AI_PROVIDER", "mock"),
		GeminiAPIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 2000),
		AIRequestTimeout:  getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProPriceID:    getEnv("STRIPE_PRO_PRICE_ID", ""),
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:3000"),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "gemini" {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY is required when AI_PROVIDER is 'gemini'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'gemini' or 'mock', got: %s", cfg.AIProvider)
	}

	if cfg.BasicTierDailyPromptLimit < 1 {
		return nil, fmt.Errorf("BASIC_TIER_DAILY_PROMPT_LIMIT must be at least 1, got %d", cfg.BasicTierDailyPromptLimit)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
