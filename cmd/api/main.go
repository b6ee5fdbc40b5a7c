package main

import (
	"context"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulgrammer/luminous/internal/config"
	"github.com/paulgrammer/luminous/internal/executor"
	"github.com/paulgrammer/luminous/internal/httpapi"
	"github.com/paulgrammer/luminous/internal/jobs"
	"github.com/paulgrammer/luminous/internal/storage"
	"github.com/paulgrammer/luminous/internal/synth"
	"github.com/paulgrammer/luminous/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logger
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	fallback, err := jobs.ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		slog.Error("invalid fallback policy", "error", err)
		os.Exit(1)
	}

	// Core components
	synthesizer := synth.New(cfg.MaxWidth, cfg.MaxHeight)
	previews, err := storage.NewPreviewStore(cfg.PreviewDir(), "/static/previews")
	if err != nil {
		slog.Error("failed to prepare preview directory", "error", err)
		os.Exit(1)
	}
	if err := previews.EnsurePlaceholder(placeholderImage(synthesizer)); err != nil {
		slog.Error("failed to write placeholder image", "error", err)
		os.Exit(1)
	}

	store := jobs.NewInMemoryStore()
	sender := webhook.NewHTTPSender(cfg.WebhookTimeout, cfg.WebhookMaxRetries)
	streamer := jobs.NewEventStreamer()
	runner := executor.NewRenderRunner(synthesizer, previews,
		executor.WithExecutorConfig(&executor.ExecutorConfig{VerboseLogging: cfg.LogLevel <= slog.LevelDebug}),
	)
	manager, err := jobs.NewManager(cfg.PoolSize, cfg.QueueSize, store, runner,
		jobs.WithSynthesizer(synthesizer),
		jobs.WithSender(sender),
		jobs.WithStreamer(streamer),
		jobs.WithFallback(fallback, previews.PlaceholderRef()),
	)
	if err != nil {
		slog.Error("failed to initialize manager", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(manager, streamer, previews, cfg.StaticDir),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server listening",
			"addr", cfg.Addr,
			"pool_size", cfg.PoolSize,
			"queue_size", cfg.QueueSize,
			"fallback_policy", string(fallback),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	manager.Stop()
	slog.Info("job queue drained")
}

func placeholderImage(s *synth.Synthesizer) image.Image {
	img, err := s.Render(synth.Params{Color: "#2b2b2b", Style: synth.StyleGradient, Width: 640, Height: 360}, nil)
	if err != nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return img
}
