package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sjsage522/webmonitor/pkg/errors"
)

// Fetcher modes
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
	FetcherRemote  = "remote"
)

// MaxWorkers caps the check worker pool; every worker may hold a rendering resource
const MaxWorkers = 8

// Config represents the application configuration
type Config struct {
	// Scheduler configuration
	CheckInterval time.Duration
	FetchTimeout  time.Duration
	WorkerCount   int

	// Fetcher configuration
	FetcherMode     string
	ChromeAddr      string
	BrowserBin      string
	BrowserMaxPages int
	FetchProxyURL   string

	// Database configuration
	DatabaseDriver string
	DatabaseDSN    string

	// Memcache configuration (page cache)
	MemcacheAddr string
	PageCacheTTL time.Duration

	// Redis configuration (alert event stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Email configuration
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Push configuration
	TelegramBotToken string

	// Environment
	Environment  string
	ErrorLogFile string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	checkInterval, _ := strconv.Atoi(getEnv("CHECK_INTERVAL_SECONDS", "60"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "30"))
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "3"))
	browserMaxPages, _ := strconv.Atoi(getEnv("BROWSER_MAX_PAGES", "2"))
	pageCacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "20"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))

	return &Config{
		CheckInterval:        time.Duration(checkInterval) * time.Second,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		WorkerCount:          workerCount,
		FetcherMode:          getEnv("FETCHER_MODE", FetcherHTTP),
		ChromeAddr:           getEnv("CHROME_ADDR", "http://localhost:3000"),
		BrowserBin:           getEnv("BROWSER_BIN", ""),
		BrowserMaxPages:      browserMaxPages,
		FetchProxyURL:        getEnv("FETCH_PROXY_URL", ""),
		DatabaseDriver:       getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseDSN:          getEnv("DATABASE_DSN", "./monitor.db"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		PageCacheTTL:         time.Duration(pageCacheTTL) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "webmonitor:alerts"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             smtpPort,
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPass:             getEnv("SMTP_PASS", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		Environment:          getEnv("MONITOR_ENVIRONMENT", "development"),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", ""),
	}
}

// Validate checks values that would make the scheduler misbehave
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return errors.NewConfiguration("CHECK_INTERVAL_SECONDS must be positive", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.WorkerCount < 1 || c.WorkerCount > MaxWorkers {
		return errors.NewConfiguration(fmt.Sprintf("WORKER_COUNT must be between 1 and %d", MaxWorkers), nil)
	}
	switch c.FetcherMode {
	case FetcherHTTP, FetcherBrowser:
	case FetcherRemote:
		if c.ChromeAddr == "" {
			return errors.NewConfiguration("CHROME_ADDR is required for the remote fetcher", nil)
		}
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown FETCHER_MODE %q", c.FetcherMode), nil)
	}
	if c.BrowserMaxPages < 1 {
		return errors.NewConfiguration("BROWSER_MAX_PAGES must be positive", nil)
	}
	switch c.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return errors.NewConfiguration(fmt.Sprintf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver), nil)
	}
	if c.DatabaseDSN == "" {
		return errors.NewConfiguration("DATABASE_DSN is required", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	return nil
}

// EmailEnabled reports whether SMTP delivery is configured
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
