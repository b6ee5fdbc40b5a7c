package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"API_ADDR", "LOG_LEVEL", "POOL_SIZE", "QUEUE_SIZE", "STATIC_DIR", "MAX_WIDTH", "MAX_HEIGHT", "FALLBACK_POLICY", "WEBHOOK_TIMEOUT_SEC", "WEBHOOK_MAX_RETRIES", "SHUTDOWN_TIMEOUT_SEC"} {
		t.Setenv(k, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8000" || cfg.QueueSize != 1024 || cfg.StaticDir != "static" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MaxWidth != 7680 || cfg.MaxHeight != 4320 || cfg.FallbackPolicy != "fail" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.WebhookMaxRetries != 0 || cfg.WebhookTimeout != 10*time.Second || cfg.ShutdownTimeout != 20*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PoolSize <= 0 {
		t.Fatalf("expected positive pool size")
	}
	if cfg.PreviewDir() != filepath.Join("static", "previews") {
		t.Fatalf("unexpected preview dir %q", cfg.PreviewDir())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("POOL_SIZE", "")
	t.Setenv("FALLBACK_POLICY", "")
	t.Setenv("MAX_WIDTH", "")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("POOL_SIZE=3\nFALLBACK_POLICY=Placeholder\nMAX_WIDTH=800\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv does not override variables that are already set.
	os.Unsetenv("POOL_SIZE")
	os.Unsetenv("FALLBACK_POLICY")
	os.Unsetenv("MAX_WIDTH")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PoolSize != 3 || cfg.FallbackPolicy != "placeholder" || cfg.MaxWidth != 800 {
		t.Fatalf("env file not applied: %+v", cfg)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("POOL_SIZE", "0")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for POOL_SIZE=0")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
