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
	Enrollment   EnrollmentConfig
	Notification NotificationConfig
	Gate         GateConfig
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
	MigrationsDir  string
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
	Level       string
	Service     string
	Environment string
}

// AuthConfig defines the project API key check.
type AuthConfig struct {
	JWTSecret     string
	RequireAPIKey bool
}

// EnrollmentConfig limits self-enrollment attempts per caller address.
type EnrollmentConfig struct {
	MaxAttempts   int
	WindowSeconds int
}

// NotificationConfig holds manager notice channels. Empty values disable a channel.
type NotificationConfig struct {
	LineChannelToken    string
	LineManagerUserID   string
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioManagerNumber string
}

// GateConfig drives the headless access gate runner.
type GateConfig struct {
	ProxyURL      string
	APIKey        string
	PollSeconds   int
	IPPrimaryURL  string
	IPFallbackURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "admin-db-proxy"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Service:     getEnv("APP_NAME", "admin-db-proxy"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", "dev-secret"),
			RequireAPIKey: getEnvAsBool("AUTH_REQUIRE_API_KEY", false),
		},
		Enrollment: EnrollmentConfig{
			MaxAttempts:   getEnvAsInt("ENROLL_MAX_ATTEMPTS", 5),
			WindowSeconds: getEnvAsInt("ENROLL_WINDOW_SECONDS", 600),
		},
		Notification: NotificationConfig{
			LineChannelToken:    os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
			LineManagerUserID:   os.Getenv("LINE_MANAGER_USER_ID"),
			TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber:    os.Getenv("TWILIO_FROM_NUMBER"),
			TwilioManagerNumber: os.Getenv("TWILIO_MANAGER_NUMBER"),
		},
		Gate: GateConfig{
			ProxyURL:      getEnv("GATE_PROXY_URL", "http://127.0.0.1:8080/functions/v1/admin-db-proxy"),
			APIKey:        os.Getenv("GATE_API_KEY"),
			PollSeconds:   getEnvAsInt("GATE_POLL_SECONDS", 10),
			IPPrimaryURL:  getEnv("GATE_IP_PRIMARY_URL", "https://api.ipify.org?format=json"),
			IPFallbackURL: getEnv("GATE_IP_FALLBACK_URL", "https://api64.ipify.org?format=json"),
		},
	}

	if cfg.Auth.RequireAPIKey && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_REQUIRE_API_KEY is set")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Window returns the enrollment attempt window.
func (e EnrollmentConfig) Window() time.Duration {
	return time.Duration(e.WindowSeconds) * time.Second
}

// PollInterval returns the silent refresh interval of the access gate.
func (g GateConfig) PollInterval() time.Duration {
	if g.PollSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.PollSeconds) * time.Second
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
