// Package config loads the engine's environment-driven configuration,
// grouped by concern the same way the teacher's config package groups
// its own (one struct per subsystem, `os.Getenv`/`strconv` parsing,
// sane defaults baked into `Load`).
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds every recognized option from SPEC_FULL.md §6 plus the
// ambient groups (database, redis, observability) every component needs
// regardless of which engine features are in play.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Archive       ArchiveConfig
	Worker        WorkerConfig
	Node          NodeConfig
	Approval      ApprovalConfig
	Event         EventConfig
	Observability ObservabilityConfig
}

// ServerConfig addresses the daemon's WebSocket fan-out (§4.8) and
// /metrics routes.
type ServerConfig struct {
	Address string
}

// DatabaseConfig holds PostgreSQL connection settings for the Persistence
// repositories (internal/store) and the Flow repository.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// RedisConfig configures the optional Redis-backed State Manager
// (internal/state.RedisStore). Unset when the in-memory store suffices.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ArchiveConfig tunes the Archival Service (§6).
type ArchiveConfig struct {
	// RetentionDays purges archives older than this (default 30).
	RetentionDays int
	// BatchSize caps executions archived per sweep (default 100).
	BatchSize int
	// SweepInterval is how often the archive sweep runs (default 5m);
	// the retention-purge sweep runs daily.
	SweepInterval time.Duration
}

// WorkerConfig tunes the Worker Pool / Scheduler (§6).
type WorkerConfig struct {
	// PoolSize bounds total concurrent node executions (default CPU×2).
	PoolSize int
	// PerExecutionCap bounds in-flight nodes per execution (default 8).
	PerExecutionCap int
}

// NodeConfig tunes per-node execution behavior (§6).
type NodeConfig struct {
	// DefaultTimeout is the per-node soft cap (default 300s).
	DefaultTimeout time.Duration
}

// ApprovalConfig tunes the Approval Coordinator (§6).
type ApprovalConfig struct {
	// SweepInterval is the expiration-sweep cadence (default 60s).
	SweepInterval time.Duration
}

// EventConfig tunes the Event Bus (§6).
type EventConfig struct {
	// SubscriberQueueDepth bounds each subscriber's buffered channel
	// (default 256).
	SubscriberQueueDepth int
}

// ObservabilityConfig configures structured logging, metrics, tracing,
// and error reporting — carried regardless of which engine features a
// deployment enables (the ambient stack, per SPEC_FULL.md §2.1).
type ObservabilityConfig struct {
	LogLevel string // debug, info, warn, error
	LogJSON  bool

	MetricsEnabled bool
	MetricsPort    string

	TracingEnabled     bool
	TracingEndpoint    string
	TracingSampleRate  float64
	TracingServiceName string

	SentryEnabled     bool
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64
}

// Load reads configuration from environment variables, falling back to
// the defaults named throughout SPEC_FULL.md §6.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "engine"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Archive: ArchiveConfig{
			RetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
			BatchSize:     getEnvAsInt("ARCHIVE_BATCH_SIZE", 100),
			SweepInterval: getEnvAsDuration("ARCHIVE_SWEEP_INTERVAL", 5*time.Minute),
		},
		Worker: WorkerConfig{
			PoolSize:        getEnvAsInt("WORKER_POOL_SIZE", runtime.NumCPU()*2),
			PerExecutionCap: getEnvAsInt("WORKER_PER_EXECUTION_CAP", 8),
		},
		Node: NodeConfig{
			DefaultTimeout: getEnvAsDuration("NODE_DEFAULT_TIMEOUT", 300*time.Second),
		},
		Approval: ApprovalConfig{
			SweepInterval: getEnvAsDuration("APPROVAL_SWEEP_INTERVAL", 60*time.Second),
		},
		Event: EventConfig{
			SubscriberQueueDepth: getEnvAsInt("EVENT_SUBSCRIBER_QUEUE_DEPTH", 256),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			LogJSON:            getEnvAsBool("LOG_JSON", true),
			MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:        getEnv("METRICS_PORT", "9090"),
			TracingEnabled:     getEnvAsBool("TRACING_ENABLED", false),
			TracingEndpoint:    getEnv("TRACING_ENDPOINT", "localhost:4317"),
			TracingSampleRate:  getEnvAsFloat("TRACING_SAMPLE_RATE", 1.0),
			TracingServiceName: getEnv("TRACING_SERVICE_NAME", "workflow-engine"),
			SentryEnabled:      getEnvAsBool("SENTRY_ENABLED", false),
			SentryDSN:          getEnv("SENTRY_DSN", ""),
			SentryEnvironment:  getEnv("SENTRY_ENVIRONMENT", "development"),
			SentrySampleRate:   getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
