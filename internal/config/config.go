package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージバックエンド
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// Storage
	StorageBackend    string
	StorageDir        string
	DatabaseURL       string
	RedisURL          string
	RedisKeyPrefix    string
	SQLiteDSN         string
	EventsKey         string
	StorageTimeout    time.Duration
	StoragePermissive bool

	// Feed
	FeedURL          string
	FeedTimeout      time.Duration
	FeedMaxSize      int64
	FeedWindowMonths int
	FeedMaxAttempts  int

	// Calendar
	Location  *time.Location
	WeekStart time.Weekday

	// Logging
	LogFormat string
	LogLevel  slog.Level

	// Rate Limit（req/min/client）
	RateLimitGeneral    int
	RateLimitFeedImport int

	// HTTP
	CORSAllowedOrigin string
	TrustProxy        bool
	MetricsEnabled    bool
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定済みの環境変数は.envの値で上書きされない。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv は環境変数のみからConfigを読み込む。
// 不正な値や、選択したバックエンドに必要な設定の欠落がある場合はエラーを返す。
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.ServerPort = getEnvString("PORT", getEnvString("SERVER_PORT", "8080"))
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", BackendFile))
	cfg.StorageDir = getEnvString("STORAGE_DIR", "./data")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisKeyPrefix = getEnvString("REDIS_KEY_PREFIX", "assigndesk:")
	cfg.SQLiteDSN = getEnvString("SQLITE_DSN", "file:assigndesk.db?mode=rwc")
	cfg.EventsKey = getEnvString("EVENTS_KEY", "events.json")
	cfg.StorageTimeout = getEnvDuration("STORAGE_TIMEOUT", 5*time.Second)
	cfg.StoragePermissive = getEnvBool("STORAGE_PERMISSIVE", false)

	switch cfg.StorageBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			problems = append(problems, "REDIS_URL is required when STORAGE_BACKEND=redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", cfg.StorageBackend))
	}

	cfg.FeedURL = getEnvString("FEED_URL", "https://montclair.campuslabs.com/engage/events.rss")
	cfg.FeedTimeout = getEnvDuration("FEED_TIMEOUT", 10*time.Second)
	cfg.FeedMaxSize = getEnvInt64("FEED_MAX_SIZE", 5242880)
	cfg.FeedWindowMonths = getEnvInt("FEED_WINDOW_MONTHS", 3)
	cfg.FeedMaxAttempts = getEnvInt("FEED_MAX_ATTEMPTS", 1)

	loc, err := time.LoadLocation(getEnvString("TIMEZONE", "Local"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("invalid TIMEZONE: %v", err))
	}
	cfg.Location = loc

	switch strings.ToLower(getEnvString("WEEK_START", "sunday")) {
	case "sunday":
		cfg.WeekStart = time.Sunday
	case "monday":
		cfg.WeekStart = time.Monday
	default:
		problems = append(problems, "WEEK_START must be sunday or monday")
	}

	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		problems = append(problems, "LOG_FORMAT must be json or text")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvString("LOG_LEVEL", "info"))); err != nil {
		problems = append(problems, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFeedImport = getEnvInt("RATE_LIMIT_FEED_IMPORT", 10)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
