package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"

	EnvProduction = "production"
)

type Config struct {
	DatabaseURL     string
	StoreDriver     string
	BoltPath        string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ServerPort      string
	ServerHost      string
	Environment     string

	RedisURL               string
	RateLimitEnabled       bool
	RateLimitIPAttempts    int
	RateLimitIPWindow      time.Duration
	RateLimitBlockDuration time.Duration

	LogLevel            string
	LogFormat           string
	LogEnableRequestLog bool

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingBoltPath    = errors.New("BOLT_PATH is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidTokenTTL    = errors.New("invalid token TTL format")
	ErrInvalidStoreDriver = errors.New("invalid STORE_DRIVER")
)

// Load reads configuration from the environment, after loading .env if one
// exists. A missing JWT_SECRET is always an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		StoreDriver:          strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres)),
		BoltPath:             getEnvOrDefault("BOLT_PATH", "portfolio-auth.db"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		ServerPort:           getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", "5000")),
		ServerHost:           getEnvOrDefault("SERVER_HOST", ""),
		Environment:          getEnvOrDefault("ENV", getEnvOrDefault("NODE_ENV", "development")),
		RedisURL:             getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitEnabled:     getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		RateLimitIPAttempts:  getEnvOrDefaultInt("RATE_LIMIT_IP_ATTEMPTS", 10),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		LogEnableRequestLog:  getEnvOrDefaultBool("LOG_ENABLE_REQUEST_LOG", true),
		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", true),
		CORSAllowedOrigins:   parseAllowedOrigins(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		AdminUsername:        getEnvOrDefault("ADMIN_USERNAME", "admin"),
		AdminEmail:           getEnvOrDefault("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:        getEnvOrDefault("ADMIN_PASSWORD", "Admin123!"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	case StoreDriverBolt:
		if cfg.BoltPath == "" {
			return nil, ErrMissingBoltPath
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidStoreDriver, cfg.StoreDriver)
	}

	accessTokenTTL, err := parseTokenTTL(getEnvOrDefault("JWT_ACCESS_TOKEN_TTL", "86400"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.AccessTokenTTL = accessTokenTTL

	refreshTokenTTL, err := parseTokenTTL(getEnvOrDefault("JWT_REFRESH_TOKEN_TTL", "604800"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RefreshTokenTTL = refreshTokenTTL

	ipWindow, err := parseTokenTTL(getEnvOrDefault("RATE_LIMIT_IP_WINDOW", "900"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RateLimitIPWindow = ipWindow

	blockDuration, err := parseTokenTTL(getEnvOrDefault("RATE_LIMIT_BLOCK_DURATION", "1800"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RateLimitBlockDuration = blockDuration

	return cfg, nil
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// parseTokenTTL accepts whole seconds ("86400") or a Go duration ("24h").
func parseTokenTTL(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, ErrInvalidTokenTTL
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, ErrInvalidTokenTTL
	}
	return d, nil
}

func parseAllowedOrigins(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}
