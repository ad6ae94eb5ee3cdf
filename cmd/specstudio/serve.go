package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"specstudio/internal/app"
	"specstudio/internal/archive"
	"specstudio/internal/config"
	"specstudio/internal/export"
	"specstudio/internal/history"
	"specstudio/internal/ratelimit"
	"specstudio/internal/secret"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) != "" {
				cfg.Addr = addr
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg, newLogger(cfg.LogLevel))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	secrets := secret.New(cfg.ShareSecret)
	if secrets.Ephemeral() {
		logger.Warn("share secret not configured; links will stop working after a restart")
	}
	if _, err := secrets.Key(); err != nil {
		return fmt.Errorf("share secret: %w", err)
	}

	deps := app.Deps{
		Config:   cfg,
		Secrets:  secrets,
		Exporter: export.NewService(cfg.PDF.Timeout()),
		Logger:   logger,
	}

	if cfg.RateLimit.Enabled {
		if strings.TrimSpace(cfg.RedisURL) != "" {
			logger.Info("using Redis for rate limiting")
			store, err := ratelimit.NewRedisStore(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			defer store.Close()
			deps.Limiter = store
		} else {
			logger.Info("using in-memory rate limiting")
			deps.Limiter = ratelimit.NewMemoryStore()
		}
	}

	if cfg.History.Dir != "" {
		if err := os.MkdirAll(cfg.History.Dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		deps.History = history.New(cfg.History.Dir)
		logger.Info("recording exports", "dir", cfg.History.Dir)
	}

	if cfg.Archive.Enabled() {
		publisher, err := archive.New(cfg.Archive)
		if err != nil {
			return err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := publisher.EnsureBucket(bucketCtx); err != nil {
			logger.Warn("archive bucket check failed; publishing may fail", "bucket", cfg.Archive.Bucket, "error", err)
		}
		cancel()
		deps.Archive = publisher
		logger.Info("publishing exports", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	httpServer := app.NewHTTPServer(deps)
	server := httpServer.Server(cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("specstudio listening", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
