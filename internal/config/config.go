package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Assignment   AssignmentConfig
	Delivery     DeliveryConfig
	Escalation   EscalationConfig
	Outbox       OutboxConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
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
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds outbound delivery settings.
type NotificationConfig struct {
	EmailFrom    string
	EventChannel string
	InboxMaxLen  int
}

// AssignmentConfig bounds per-staff routing.
type AssignmentConfig struct {
	MaxConcurrent int
}

// DeliveryConfig tunes the notification delivery worker.
type DeliveryConfig struct {
	PollIntervalSeconds   int
	AttemptTimeoutSeconds int
	MaxAttempts           int
	BackoffBaseSeconds    int
	BatchSize             int
}

// EscalationConfig tunes the overdue-request scanner.
type EscalationConfig struct {
	IntervalMinutes int
	BatchSize       int
}

// OutboxConfig tunes the unprocessed-event relay.
type OutboxConfig struct {
	IntervalSeconds int
	MinAgeSeconds   int
	BatchSize       int
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
			Name:                  getEnv("APP_NAME", "estate-ops"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@estate-ops.local"),
			EventChannel: getEnv("NOTIFY_EVENT_CHANNEL", "estate.events"),
			InboxMaxLen:  getEnvAsInt("NOTIFY_INBOX_MAX_LEN", 200),
		},
		Assignment: AssignmentConfig{
			MaxConcurrent: getEnvAsInt("ASSIGNMENT_MAX_CONCURRENT", 10),
		},
		Delivery: DeliveryConfig{
			PollIntervalSeconds:   getEnvAsInt("DELIVERY_POLL_INTERVAL_SECONDS", 5),
			AttemptTimeoutSeconds: getEnvAsInt("DELIVERY_ATTEMPT_TIMEOUT_SECONDS", 10),
			MaxAttempts:           getEnvAsInt("DELIVERY_MAX_ATTEMPTS", 3),
			BackoffBaseSeconds:    getEnvAsInt("DELIVERY_BACKOFF_BASE_SECONDS", 60),
			BatchSize:             getEnvAsInt("DELIVERY_BATCH_SIZE", 100),
		},
		Escalation: EscalationConfig{
			IntervalMinutes: getEnvAsInt("ESCALATION_INTERVAL_MINUTES", 60),
			BatchSize:       getEnvAsInt("ESCALATION_BATCH_SIZE", 100),
		},
		Outbox: OutboxConfig{
			IntervalSeconds: getEnvAsInt("OUTBOX_RELAY_INTERVAL_SECONDS", 30),
			MinAgeSeconds:   getEnvAsInt("OUTBOX_RELAY_MIN_AGE_SECONDS", 10),
			BatchSize:       getEnvAsInt("OUTBOX_RELAY_BATCH_SIZE", 100),
		},
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

// PollInterval returns the worker poll cadence.
func (d DeliveryConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// AttemptTimeout bounds a single delivery attempt.
func (d DeliveryConfig) AttemptTimeout() time.Duration {
	return time.Duration(d.AttemptTimeoutSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (d DeliveryConfig) BackoffBase() time.Duration {
	return time.Duration(d.BackoffBaseSeconds) * time.Second
}

// Interval returns the scan cadence.
func (e EscalationConfig) Interval() time.Duration {
	return time.Duration(e.IntervalMinutes) * time.Minute
}

// Interval returns the relay cadence.
func (o OutboxConfig) Interval() time.Duration {
	return time.Duration(o.IntervalSeconds) * time.Second
}

// MinAge is how long an unprocessed outbox row must sit before the relay
// redelivers it, leaving room for the synchronous path to confirm first.
func (o OutboxConfig) MinAge() time.Duration {
	return time.Duration(o.MinAgeSeconds) * time.Second
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

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
