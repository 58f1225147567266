package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Buffer        BufferConfig
	Limits        LimitsConfig
	Sink          SinkConfig
	Admin         AdminConfig
	Tenants       TenantsConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// BufferConfig holds the dual-horizon window configuration
type BufferConfig struct {
	ShortWindow      time.Duration // low-latency detection horizon
	LongWindow       time.Duration // incident reconstruction horizon
	IdleRetention    time.Duration // how long an idle tenant buffer survives
	RetentionSweep   time.Duration // interval of the idle-buffer sweep
	ReorderTolerance time.Duration // max backwards timestamp skew corrected in place
}

// LimitsConfig holds per-tenant admission ceilings
type LimitsConfig struct {
	MaxFrameBytes      int64
	MaxFramesPerSecond int
}

// SinkConfig holds analysis sink configuration
type SinkConfig struct {
	URL       string
	QueueSize int
	Timeout   time.Duration
}

// AdminConfig holds the administrative credential (distinct from tenant keys)
type AdminConfig struct {
	APIKey string
}

// TenantsConfig holds tenant provisioning policy
type TenantsConfig struct {
	AllowDuplicateEmails bool
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (repo root or working directory)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8443),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Buffer: BufferConfig{
			ShortWindow:      getEnvAsDuration("SHORT_WINDOW", 10*time.Second),
			LongWindow:       getEnvAsDuration("LONG_WINDOW", 2*time.Minute),
			IdleRetention:    getEnvAsDuration("IDLE_RETENTION", 30*time.Minute),
			RetentionSweep:   getEnvAsDuration("RETENTION_SWEEP_INTERVAL", time.Minute),
			ReorderTolerance: getEnvAsDuration("REORDER_TOLERANCE", 2*time.Second),
		},
		Limits: LimitsConfig{
			MaxFrameBytes:      getEnvAsInt64("MAX_FRAME_BYTES", 1<<20),
			MaxFramesPerSecond: getEnvAsInt("MAX_FRAMES_PER_SECOND", 30),
		},
		Sink: SinkConfig{
			URL:       getEnv("SINK_URL", ""),
			QueueSize: getEnvAsInt("SINK_QUEUE_SIZE", 1024),
			Timeout:   getEnvAsDuration("SINK_TIMEOUT", 5*time.Second),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Tenants: TenantsConfig{
			AllowDuplicateEmails: getEnvAsBool("TENANT_ALLOW_DUPLICATE_EMAILS", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Window validation: the short horizon must sit inside the long one
	if c.Buffer.ShortWindow <= 0 || c.Buffer.LongWindow <= 0 {
		return fmt.Errorf("window durations must be positive")
	}
	if c.Buffer.ShortWindow >= c.Buffer.LongWindow {
		return fmt.Errorf("short window (%s) must be shorter than long window (%s)",
			c.Buffer.ShortWindow, c.Buffer.LongWindow)
	}
	if c.Buffer.IdleRetention <= 0 {
		return fmt.Errorf("idle retention must be positive")
	}
	if c.Buffer.ReorderTolerance < 0 {
		return fmt.Errorf("reorder tolerance must not be negative")
	}

	// Admission ceilings bound buffer memory; zero would admit nothing
	if c.Limits.MaxFrameBytes <= 0 {
		return fmt.Errorf("max frame bytes must be positive")
	}
	if c.Limits.MaxFramesPerSecond <= 0 {
		return fmt.Errorf("max frames per second must be positive")
	}

	if c.Sink.QueueSize <= 0 {
		return fmt.Errorf("sink queue size must be positive")
	}

	// Admin credential is required outside development
	if c.IsProduction() && c.Admin.APIKey == "" {
		return fmt.Errorf("admin API key is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "camrelay"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "camrelay"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
