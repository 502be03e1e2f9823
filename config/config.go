package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Email        EmailConfig
	Content      ContentConfig
	Registration RegistrationConfig
	Scheduler    SchedulerConfig
	Queue        QueueConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // absolute base for confirmation links in emails
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// EmailConfig holds SMTP settings for outbound mail.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// ContentConfig holds the conference content store settings.
type ContentConfig struct {
	Dir string // directory of per-slug conference JSON files
}

// RegistrationConfig holds the confirmation and reminder policy knobs.
type RegistrationConfig struct {
	TokenTTL                time.Duration // confirmation token lifetime
	MaxReminders            int           // reminder budget per pending registration
	ReminderInterval        time.Duration // minimum gap between reminders
	CancellationThreshold   time.Duration // pending age after which exhausted rows are purged
	SessionCapacityCacheTTL time.Duration // redis cache TTL for capacity counts
}

// SchedulerConfig holds sweep intervals for the two periodic jobs.
type SchedulerConfig struct {
	ConfirmationSweepInterval time.Duration
	SessionSweepInterval      time.Duration
}

// QueueConfig holds background queue settings.
type QueueConfig struct {
	TaskDelay time.Duration // pause between sequential tasks
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "confera"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Confera"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Content: ContentConfig{
			Dir: getEnv("CONTENT_DIR", "./content"),
		},
		Registration: RegistrationConfig{
			TokenTTL:                time.Duration(getEnvInt("CONFIRMATION_TOKEN_TTL_MINUTES", 60)) * time.Minute,
			MaxReminders:            getEnvInt("MAX_CONFIRMATION_REMINDERS", 2),
			ReminderInterval:        time.Duration(getEnvInt("REMINDER_INTERVAL_HOURS", 4)) * time.Hour,
			CancellationThreshold:   time.Duration(getEnvInt("CANCELLATION_THRESHOLD_HOURS", 24)) * time.Hour,
			SessionCapacityCacheTTL: time.Duration(getEnvInt("CAPACITY_CACHE_TTL_SEC", 30)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			ConfirmationSweepInterval: time.Duration(getEnvInt("CONFIRMATION_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
			SessionSweepInterval:      time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Queue: QueueConfig{
			TaskDelay: time.Duration(getEnvInt("QUEUE_TASK_DELAY_MS", 500)) * time.Millisecond,
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
