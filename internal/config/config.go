package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

type Config struct {
	Env      string
	LogLevel string

	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	StoreDriver string
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret           string
	JWTAccessTTL        time.Duration
	JWTRefreshTTL       time.Duration
	JWTResetPasswordTTL time.Duration
	JWTVerifyEmailTTL   time.Duration
	BcryptCost          int

	CORSOrigins          []string
	RateLimitRPM         int
	AuthRateLimitRPM     int
	TokenCleanupInterval time.Duration

	AppBaseURL   string
	MailDriver   string
	MailFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:        getDuration("JWT_ACCESS_TTL", 30*time.Minute),
		JWTRefreshTTL:       getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		JWTResetPasswordTTL: getDuration("JWT_RESET_PASSWORD_TTL", 10*time.Minute),
		JWTVerifyEmailTTL:   getDuration("JWT_VERIFY_EMAIL_TTL", 10*time.Minute),
		BcryptCost:          getInt("BCRYPT_COST", 8),

		CORSOrigins:          splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:     getInt("AUTH_RATE_LIMIT_RPM", 10),
		TokenCleanupInterval: getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),

		AppBaseURL:   strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		MailDriver:   strings.ToLower(getEnv("MAIL_DRIVER", MailDriverLog)),
		MailFrom:     getEnv("MAIL_FROM", "noreply@example.com"),
		SMTPHost:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV must be one of development, production, test")
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory")
	}

	for name, ttl := range map[string]time.Duration{
		"JWT_ACCESS_TTL":         c.JWTAccessTTL,
		"JWT_REFRESH_TTL":        c.JWTRefreshTTL,
		"JWT_RESET_PASSWORD_TTL": c.JWTResetPasswordTTL,
		"JWT_VERIFY_EMAIL_TTL":   c.JWTVerifyEmailTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.TokenCleanupInterval <= 0 {
		return fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be positive")
	}

	switch c.MailDriver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_DRIVER=smtp")
		}
	default:
		return fmt.Errorf("MAIL_DRIVER must be log or smtp")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
