package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort      string
	JWTSecret       string
	DefaultTimezone string
	Backend         BackendConfig
	Polling         PollingConfig
	Storage         StorageConfig
	Postgres        PostgresConfig
	Mongo           MongoConfig
	Redis           RedisConfig
	Logging         LoggingConfig
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollingConfig struct {
	Interval       time.Duration
	JoinLead       time.Duration
	StaleThreshold int
}

// StorageConfig selects where timezone preferences live: "memory", "postgres" or "mongo".
type StorageConfig struct {
	Backend string
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig configures the optional preference cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func (b BackendConfig) URL() string {
	return strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
}

func LoadConfig() (*Config, error) {
	port := envOrDefault("PORT", "8080")
	jwtSecret := envOrDefault("JWT_SECRET", "dev-secret")

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)
	redisDB, _ := strconv.Atoi(envOrDefault("REDIS_DB", "0"))

	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "recruai-sync"),
	}

	cfg := &Config{
		ServerPort:      port,
		JWTSecret:       jwtSecret,
		DefaultTimezone: strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE")),
		Backend: BackendConfig{
			BaseURL: envOrDefault("BACKEND_BASE_URL", "http://localhost:8000/api"),
			Timeout: parseDuration(envOrDefault("BACKEND_TIMEOUT", "15s"), 15*time.Second),
		},
		Polling: PollingConfig{
			Interval:       parseDuration(envOrDefault("POLL_INTERVAL", "30s"), 30*time.Second),
			JoinLead:       parseDuration(envOrDefault("JOIN_LEAD", "15m"), 15*time.Minute),
			StaleThreshold: int(parseInt32(envOrDefault("POLL_STALE_THRESHOLD", "3"), 3)),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(envOrDefault("PREFERENCES_BACKEND", "memory")),
		},
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          envOrDefault("POSTGRES_PASSWORD", "postgres"),
			Database:          envOrDefault("POSTGRES_DB", "recruai"),
			MaxConns:          maxConns,
			MinConns:          minConns,
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "recruai"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			CacheTTL: parseDuration(envOrDefault("REDIS_CACHE_TTL", "10m"), 10*time.Minute),
		},
		Logging: logging,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("config: unknown PREFERENCES_BACKEND %q", c.Storage.Backend)
	}

	if c.Backend.URL() == "" {
		return fmt.Errorf("config: BACKEND_BASE_URL is required")
	}

	if c.Polling.Interval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be positive")
	}

	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
