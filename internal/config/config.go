// Package config provides environment configuration for the chat server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

// Resolver names accepted by RESOLVER.
const (
	ResolverCanned = "canned"
	ResolverLLM    = "llm"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings. An empty URL disables event publishing.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// Activation
	InviteCode string

	// Answers
	Resolver        string
	AnswerDelay     time.Duration
	ResolveTimeout  time.Duration
	TriggerKeywords []string

	// Reveal
	RevealInterval time.Duration

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	LLMModel        string

	// Sessions
	SessionIdleTimeout time.Duration
	MaxSessions        int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS. Empty allows any origin.
	CORSAllowedOrigins []string

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
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 12*time.Hour),

		// Activation
		InviteCode: getEnv("INVITE_CODE", "12345"),

		// Answers
		Resolver:        getEnv("RESOLVER", ResolverCanned),
		AnswerDelay:     getDurationEnv("ANSWER_DELAY", 1500*time.Millisecond),
		ResolveTimeout:  getDurationEnv("RESOLVE_TIMEOUT", time.Minute),
		TriggerKeywords: getListEnv("TRIGGER_KEYWORDS", []string{"cancer"}),

		// Reveal
		RevealInterval: getDurationEnv("REVEAL_INTERVAL", 100*time.Millisecond),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		LLMModel:        getEnv("LLM_MODEL", ""),

		// Sessions
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		MaxSessions:        getIntEnv("MAX_SESSIONS", 1000),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", nil),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks the loaded values and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Resolver != ResolverCanned && c.Resolver != ResolverLLM {
		errs = append(errs, fmt.Errorf("RESOLVER %q is invalid; valid values: %s, %s", c.Resolver, ResolverCanned, ResolverLLM))
	}
	if c.Resolver == ResolverLLM && c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("RESOLVER=llm requires ANTHROPIC_API_KEY or OPENAI_API_KEY"))
	}
	if c.RevealInterval <= 0 {
		errs = append(errs, fmt.Errorf("REVEAL_INTERVAL must be positive, got %s", c.RevealInterval))
	}
	if c.AnswerDelay < 0 {
		errs = append(errs, fmt.Errorf("ANSWER_DELAY must not be negative, got %s", c.AnswerDelay))
	}
	if c.ResolveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RESOLVE_TIMEOUT must be positive, got %s", c.ResolveTimeout))
	}
	if c.InviteCode == "" {
		errs = append(errs, errors.New("INVITE_CODE must not be empty"))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SESSIONS must be positive, got %d", c.MaxSessions))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests))
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is invalid; valid values: debug, info, warn, error, fatal", c.LogLevel))
	}

	return errors.Join(errs...)
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
