package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Identity IdentityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port          string
	Env           string
	LogLevel      string
	OperatorToken string
}

// AuthConfig holds the security policy knobs for the auth core.
type AuthConfig struct {
	// Throttle
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// Session registry
	MaxSessionsPerUser int
	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration

	// Coordinator
	LogoutDeadline time.Duration

	// Per-IP request limit on the login endpoint
	LoginRequestsPerMinute int
}

// IdentityConfig points at the external identity provider.
type IdentityConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	operatorToken := getEnv("OPERATOR_TOKEN", "")
	if operatorToken == "" && env == "production" {
		return nil, fmt.Errorf("OPERATOR_TOKEN is required in production")
	}

	identityBaseURL := getEnv("IDENTITY_BASE_URL", "")
	if identityBaseURL == "" {
		return nil, fmt.Errorf("IDENTITY_BASE_URL is required")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatehouse"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Env:           env,
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			OperatorToken: operatorToken,
		},
		Auth: AuthConfig{
			MaxFailedAttempts:      getEnvAsInt("MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:        getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
			MaxSessionsPerUser:     getEnvAsInt("MAX_SESSIONS_PER_USER", 3),
			SessionIdleTimeout:     getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval:          getEnvAsDuration("SESSION_SWEEP_INTERVAL", 60*time.Second),
			LogoutDeadline:         getEnvAsDuration("LOGOUT_DEADLINE", 2*time.Second),
			LoginRequestsPerMinute: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 10),
		},
		Identity: IdentityConfig{
			BaseURL:        strings.TrimRight(identityBaseURL, "/"),
			RequestTimeout: getEnvAsDuration("IDENTITY_REQUEST_TIMEOUT", 5*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.Auth.MaxSessionsPerUser < 1 {
		return nil, fmt.Errorf("MAX_SESSIONS_PER_USER must be at least 1")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
