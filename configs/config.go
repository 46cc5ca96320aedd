package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type S3 struct {
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Queue struct {
	Concurrency int
	MaxRetry    int
}

type Cron struct {
	TokenRefresh string
	ReviewSync   string
	AutoReply    string
}

type Config struct {
	Port                 string
	LogLevel             string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURI    string
	GMBRedirectURI       string
	PostgresURI          string
	FrontendURL          string
	SecretKey            string
	CookieName           string
	SessionTTL           time.Duration
	TokenExpiryBuffer    time.Duration
	ProcessedPostsTTL    time.Duration
	ReviewSyncPageSize   int
	Redis                Redis
	S3                   S3
	OpenAI               OpenAI
	Queue                Queue
	Cron                 Cron
	RunMigrationsOnStart bool
}

func LoadConfig() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		GMBRedirectURI:     getEnv("GMB_REDIRECT_URI", "http://localhost:3000/auth/gmb/callback"),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "locaposty_session"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		TokenExpiryBuffer:  getEnvDuration("TOKEN_EXPIRY_BUFFER", 5*time.Minute),
		ProcessedPostsTTL:  getEnvDuration("PROCESSED_POSTS_TTL", 7*24*time.Hour),
		ReviewSyncPageSize: getEnvInt("REVIEW_SYNC_PAGE_SIZE", 50),
		Redis: Redis{
			Addr:     getEnv("REDIS_URI", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		S3: S3{
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			Region:     getEnv("S3_REGION", "auto"),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			BucketName: getEnv("S3_BUCKET_NAME", ""),
			PublicURL:  strings.TrimSuffix(getEnv("S3_PUBLIC_URL", ""), "/"),
		},
		OpenAI: OpenAI{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Queue: Queue{
			Concurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
			MaxRetry:    getEnvInt("QUEUE_MAX_RETRY", 3),
		},
		Cron: Cron{
			TokenRefresh: getEnv("CRON_TOKEN_REFRESH", "@every 00h10m00s"),
			ReviewSync:   getEnv("CRON_REVIEW_SYNC", "@every 01h00m00s"),
			AutoReply:    getEnv("CRON_AUTO_REPLY", "@every 00h15m00s"),
		},
		RunMigrationsOnStart: getEnvBool("RUN_MIGRATIONS", true),
	}
}

// Validate reports every required setting that is missing or malformed.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required"))
	}
	// AES-256 key for tokens at rest and HMAC key for sessions.
	if len(c.SecretKey) != 32 {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be 32 bytes, got %d", len(c.SecretKey)))
	}
	if c.Queue.Concurrency <= 0 {
		errs = append(errs, errors.New("QUEUE_CONCURRENCY must be > 0"))
	}
	if c.Queue.MaxRetry < 0 {
		errs = append(errs, errors.New("QUEUE_MAX_RETRY must be >= 0"))
	}
	if c.ProcessedPostsTTL <= 0 {
		errs = append(errs, errors.New("PROCESSED_POSTS_TTL must be > 0"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
