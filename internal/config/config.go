package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for both binaries.
type Config struct {
	App          AppConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	API          APIConfig
	Sync         SyncConfig
	Push         PushConfig
	Notification NotificationConfig
}

// AppConfig controls sandbox server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig defines token parameters. AccessToken is the credential the
// sync engine presents to the remote API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AccessToken           string
}

// APIConfig points the transport client at the remote ticket API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SyncConfig tunes the scheduler and its retry policy.
type SyncConfig struct {
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// PushConfig configures the push channel subscription.
type PushConfig struct {
	Channel        string
	ReconnectDelay time.Duration
}

// NotificationConfig configures the alert trigger and its sinks.
type NotificationConfig struct {
	Window     time.Duration
	WebhookURL string
	Permission string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-ticket-sync"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AccessToken:           os.Getenv("SUPPORT_ACCESS_TOKEN"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("SUPPORT_API_URL", "http://127.0.0.1:8080"), "/"),
			Timeout: getEnvAsDuration("SUPPORT_API_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			PollInterval:  getEnvAsDuration("SYNC_POLL_INTERVAL", 30*time.Second),
			RetryAttempts: getEnvAsInt("SYNC_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvAsDuration("SYNC_RETRY_DELAY", 2*time.Second),
		},
		Push: PushConfig{
			Channel:        getEnv("PUSH_CHANNEL", "support:tickets"),
			ReconnectDelay: getEnvAsDuration("PUSH_RECONNECT_DELAY", time.Second),
		},
		Notification: NotificationConfig{
			Window:     getEnvAsDuration("NOTIFY_WINDOW", 10*time.Second),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Permission: strings.ToLower(getEnv("NOTIFY_PERMISSION", "undetermined")),
		},
	}

	if cfg.Sync.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid SYNC_POLL_INTERVAL: must be positive")
	}
	if cfg.Sync.RetryAttempts < 0 {
		return nil, fmt.Errorf("invalid SYNC_RETRY_ATTEMPTS: must not be negative")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration accepts Go duration strings ("30s") or bare seconds ("30").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
