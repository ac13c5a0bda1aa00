// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// State store: "memory" or "nats"
	StateBackend string
	StateBucket  string

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string

	// Completion gateway
	CompletionTimeout   time.Duration
	CompletionMaxTokens int
	PromptWindow        int

	// Routing thresholds are product tuning knobs; change with care.
	TransferThreshold   float64
	SuggestThreshold    float64
	SpecialistThreshold float64
	HistoryLimit        int

	// Flow builder
	FlowScriptPath string

	// Session lifecycle
	SessionIdleAge time.Duration
	SweepInterval  time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// State store
		StateBackend: getEnv("STATE_BACKEND", "memory"),
		StateBucket:  getEnv("STATE_BUCKET", "conversations"),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),

		// Completion gateway
		CompletionTimeout:   getDurationEnv("COMPLETION_TIMEOUT", 30*time.Second),
		CompletionMaxTokens: getIntEnv("COMPLETION_MAX_TOKENS", 1024),
		PromptWindow:        getIntEnv("PROMPT_WINDOW", 10),

		// Routing
		TransferThreshold:   getFloatEnv("TRANSFER_THRESHOLD", 0.7),
		SuggestThreshold:    getFloatEnv("SUGGEST_THRESHOLD", 0.4),
		SpecialistThreshold: getFloatEnv("SPECIALIST_THRESHOLD", 0.8),
		HistoryLimit:        getIntEnv("HISTORY_LIMIT", 20),

		// Flow builder
		FlowScriptPath: getEnv("FLOW_SCRIPT_PATH", ""),

		// Session lifecycle
		SessionIdleAge: getDurationEnv("SESSION_IDLE_AGE", 24*time.Hour),
		SweepInterval:  getDurationEnv("SWEEP_INTERVAL", 15*time.Minute),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
