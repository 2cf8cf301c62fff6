package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application. Every value is read
// from the environment once at startup and then passed to the components
// that need it.
type Config struct {
	// --- Server & Paths ---
	ServerAddr  string
	DataPath    string
	FrontendURL string
	Environment string
	LogLevel    string

	// --- Database ---
	// DbDriver is either "sqlite" (the default, a file under DataPath) or
	// "pgx" for PostgreSQL.
	DbDriver    string
	DatabaseURL string

	// --- Security ---
	JwtSecret string

	// --- Google OAuth 2.0 (optional) ---
	GoogleOauthClientID     string
	GoogleOauthClientSecret string
	GoogleOauthRedirectURL  string

	// --- Object Storage ---
	AwsRegion          string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	S3Bucket           string
	S3Endpoint         string
	S3SSE              string
	S3BucketKeyEnabled bool
	PresignPutTTL      time.Duration
	PresignGetTTL      time.Duration

	// --- Rate Limiting ---
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RateLimitNameChecks int

	// --- Reporting & Alerts ---
	SentryDSN           string
	TelegramBotToken    string
	TelegramAdminChatID int64

	// --- Parsed & Derived Fields ---
	ParsedFrontendURL *url.URL
}

// New creates a new Config instance by loading values from environment variables.
// It validates that critical variables are present and returns an error if
// the configuration is invalid, preventing the server from starting.
func New() (*Config, error) {
	cfg := &Config{
		ServerAddr:  os.Getenv("SERVER_ADDR"),
		DataPath:    os.Getenv("DATA_PATH"),
		FrontendURL: os.Getenv("FRONTEND_URL"),
		Environment: os.Getenv("ENVIRONMENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),

		DbDriver:    os.Getenv("DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JwtSecret: os.Getenv("JWT_SECRET"),

		GoogleOauthClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
		GoogleOauthClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
		GoogleOauthRedirectURL:  os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"),

		AwsRegion:          os.Getenv("AWS_REGION"),
		AwsAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AwsSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3SSE:              strings.TrimSpace(os.Getenv("S3_SSE")),
		S3BucketKeyEnabled: strings.EqualFold(os.Getenv("S3_BUCKET_KEY_ENABLED"), "true"),
		PresignPutTTL:      time.Duration(getEnvAsInt("S3_PUT_EXPIRES_SECONDS", 600)) * time.Second,
		PresignGetTTL:      time.Duration(getEnvAsInt("S3_GET_EXPIRES_SECONDS", 300)) * time.Second,

		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		RateLimitNameChecks: getEnvAsInt("RATE_LIMIT_NAME_CHECK", 30),

		SentryDSN:        os.Getenv("SENTRY_DSN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
	cfg.TelegramAdminChatID, _ = strconv.ParseInt(os.Getenv("TELEGRAM_ADMIN_CHAT_ID"), 10, 64)

	// --- Provide sensible defaults for non-critical values ---
	if cfg.DataPath == "" {
		cfg.DataPath = "./data"
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DbDriver == "" {
		cfg.DbDriver = "sqlite"
	}
	if cfg.AwsRegion == "" {
		cfg.AwsRegion = "ap-south-1"
	}

	// --- Validate critical required values ---
	if cfg.JwtSecret == "" {
		return nil, errors.New("FATAL: JWT_SECRET environment variable is not set")
	}
	if cfg.FrontendURL == "" {
		return nil, errors.New("FATAL: FRONTEND_URL environment variable is not set")
	}
	switch cfg.DbDriver {
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = filepath.Join(cfg.DataPath, "advenduro.db")
		}
	case "pgx":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("FATAL: DATABASE_URL is required when DB_DRIVER=pgx")
		}
	default:
		return nil, errors.New("FATAL: DB_DRIVER must be 'sqlite' or 'pgx'")
	}
	if cfg.S3SSE != "" && cfg.S3SSE != "AES256" && cfg.S3SSE != "aws:kms" {
		return nil, errors.New("FATAL: S3_SSE must be 'AES256' or 'aws:kms'")
	}

	// --- Parse and derive necessary fields ---
	parsedURL, err := url.Parse(cfg.FrontendURL)
	if err != nil {
		return nil, errors.New("FATAL: Invalid FRONTEND_URL format")
	}
	cfg.ParsedFrontendURL = parsedURL

	return cfg, nil
}

// GoogleLoginEnabled reports whether both halves of the Google OAuth client
// credentials are configured.
func (c *Config) GoogleLoginEnabled() bool {
	return c.GoogleOauthClientID != "" && c.GoogleOauthClientSecret != ""
}

// IsProduction reports whether the server runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvAsInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
