package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration, read from the environment with an
// optional .env file.
type Config struct {
	Addr              string
	LogLevel          slog.Level
	PoolSize          int
	QueueSize         int
	StaticDir         string
	MaxWidth          int
	MaxHeight         int
	FallbackPolicy    string
	WebhookTimeout    time.Duration
	WebhookMaxRetries int
	ShutdownTimeout   time.Duration
}

// PreviewDir is where rendered wallpapers are written.
func (c *Config) PreviewDir() string {
	return filepath.Join(c.StaticDir, "previews")
}

// Load reads .env files if present, then the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Addr:              getenv("API_ADDR", ":8000"),
		LogLevel:          ParseLogLevel(getenv("LOG_LEVEL", "INFO")),
		PoolSize:          getEnvInt("POOL_SIZE", runtime.NumCPU()),
		QueueSize:         getEnvInt("QUEUE_SIZE", 1024),
		StaticDir:         getenv("STATIC_DIR", "static"),
		MaxWidth:          getEnvInt("MAX_WIDTH", 7680),
		MaxHeight:         getEnvInt("MAX_HEIGHT", 4320),
		FallbackPolicy:    strings.ToLower(getenv("FALLBACK_POLICY", "fail")),
		WebhookTimeout:    time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SEC", 10)) * time.Second,
		WebhookMaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 0),
		ShutdownTimeout:   time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
	}

	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("config: POOL_SIZE must be > 0, got %d", cfg.PoolSize)
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("config: QUEUE_SIZE must be > 0, got %d", cfg.QueueSize)
	}
	if cfg.MaxWidth <= 0 || cfg.MaxHeight <= 0 {
		return nil, fmt.Errorf("config: MAX_WIDTH and MAX_HEIGHT must be > 0")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
