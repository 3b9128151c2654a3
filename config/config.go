package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Store backends
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Config holds all configuration for the listener service
type Config struct {
	Service  ServiceConfig
	Logging  LoggingConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Listener ListenerConfig
	Session  SessionConfig
	Kafka    KafkaConfig
	S3       S3Config
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name            string
	Port            string
	ShutdownTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// StorageConfig holds configuration of the account store and the message logs
type StorageConfig struct {
	DataDir string
	Backend string // file | postgres
}

// DatabaseConfig holds PostgreSQL configuration (used by the postgres store backend)
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// ListenerConfig holds listener lifecycle configuration
type ListenerConfig struct {
	GracePeriod  time.Duration // bounded wait for a cancelled task
	CloseTimeout time.Duration // bounded wait for closing a backend connection
	ResolveRate  float64       // per-reference resolve calls per second
	EventBuffer  int
}

// SessionConfig holds login flow configuration
type SessionConfig struct {
	LoginTTL       time.Duration
	SweepInterval  time.Duration
	MaxPending     int
	ConnectTimeout time.Duration
}

// KafkaConfig holds configuration of the capture publisher
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicCaptured string
}

// S3Config holds configuration of the log archiver
type S3Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Bucket          string
	UseSSL          bool
	ArchiveInterval time.Duration
}

// Enabled reports whether archiving to S3 is configured
func (c *S3Config) Enabled() bool {
	return c.Endpoint != ""
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config         *Config
	ServiceConfig  *ServiceConfig
	LoggingConfig  *LoggingConfig
	StorageConfig  *StorageConfig
	DatabaseConfig *DatabaseConfig
	ListenerConfig *ListenerConfig
	SessionConfig  *SessionConfig
	KafkaConfig    *KafkaConfig
	S3Config       *S3Config
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:         cfg,
		ServiceConfig:  &cfg.Service,
		LoggingConfig:  &cfg.Logging,
		StorageConfig:  &cfg.Storage,
		DatabaseConfig: &cfg.Database,
		ListenerConfig: &cfg.Listener,
		SessionConfig:  &cfg.Session,
		KafkaConfig:    &cfg.Kafka,
		S3Config:       &cfg.S3,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return d
	}

	resolveRate, err := strconv.ParseFloat(getEnv("RESOLVE_RATE", "5"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RESOLVE_RATE: %v", err))
	}
	eventBuffer, err := strconv.Atoi(getEnv("LISTENER_EVENT_BUFFER", "256"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LISTENER_EVENT_BUFFER: %v", err))
	}
	maxPending, err := strconv.Atoi(getEnv("LOGIN_MAX_PENDING", "50"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOGIN_MAX_PENDING: %v", err))
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "listener-service"),
			Port:            getEnv("SERVICE_PORT", "8080"),
			ShutdownTimeout: duration("SERVICE_SHUTDOWN_TIMEOUT", "30s"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile)),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DATABASE_HOST", "localhost"),
			Port:           getEnv("DATABASE_PORT", "5432"),
			User:           getEnv("DATABASE_USER", "listener_user"),
			Password:       getEnv("DATABASE_PASSWORD", "listener_pass"),
			DBName:         getEnv("DATABASE_NAME", "listener_db"),
			SSLMode:        getEnv("DATABASE_SSLMODE", "disable"),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", "file://migrations"),
		},
		Listener: ListenerConfig{
			GracePeriod:  duration("LISTENER_GRACE_PERIOD", "5s"),
			CloseTimeout: duration("LISTENER_CLOSE_TIMEOUT", "5s"),
			ResolveRate:  resolveRate,
			EventBuffer:  eventBuffer,
		},
		Session: SessionConfig{
			LoginTTL:       duration("LOGIN_TTL", "5m"),
			SweepInterval:  duration("LOGIN_SWEEP_INTERVAL", "1m"),
			MaxPending:     maxPending,
			ConnectTimeout: duration("TELEGRAM_CONNECT_TIMEOUT", "30s"),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9093"), ","),
			TopicCaptured: getEnv("KAFKA_TOPIC_CAPTURED", "messages.captured"),
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKey:       getEnv("S3_ACCESS_KEY", ""),
			SecretKey:       getEnv("S3_SECRET_KEY", ""),
			Bucket:          getEnv("S3_BUCKET", "captures"),
			UseSSL:          getEnvBool("S3_USE_SSL", false),
			ArchiveInterval: duration("ARCHIVE_INTERVAL", "1h"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	switch c.Storage.Backend {
	case StoreBackendFile:
	case StoreBackendPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DATABASE_HOST and DATABASE_NAME are required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Storage.Backend)
	}

	if c.Listener.GracePeriod <= 0 {
		return fmt.Errorf("LISTENER_GRACE_PERIOD must be positive")
	}
	if c.Listener.CloseTimeout <= 0 {
		return fmt.Errorf("LISTENER_CLOSE_TIMEOUT must be positive")
	}
	if c.Listener.ResolveRate <= 0 {
		return fmt.Errorf("RESOLVE_RATE must be positive")
	}
	if c.Listener.EventBuffer <= 0 {
		return fmt.Errorf("LISTENER_EVENT_BUFFER must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
		}
		if c.Kafka.TopicCaptured == "" {
			return fmt.Errorf("KAFKA_TOPIC_CAPTURED is required when KAFKA_ENABLED is set")
		}
	}

	if c.S3.Enabled() && c.S3.ArchiveInterval <= 0 {
		return fmt.Errorf("ARCHIVE_INTERVAL must be positive")
	}

	return nil
}

// GetDSN returns database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
