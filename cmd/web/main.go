package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"adgen/internal/app"
	"adgen/internal/config"
	"adgen/internal/logging"
	"adgen/internal/web"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}
	defer a.Close()

	handler := web.NewRouter(web.Options{
		Auth:     a.Auth,
		Pipeline: a.Pipeline,
		Sessions: a.Sessions,
		History:  a.History,
		Payments: a.Payments,
		Metrics:  a.Metrics,
		Config:   web.ConfigValues(cfg),
		Logger:   logger,
	})
	srv := web.NewServer(cfg.WebAddr, handler)

	go func() {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := a.Sessions.Sweep(); n > 0 {
					logger.Debug("idle sessions dropped", zap.Int("count", n))
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("web started", zap.String("addr", cfg.WebAddr), zap.String("image_provider", cfg.ImageProvider), zap.String("auth_provider", cfg.AuthProvider))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("shutting down")
}
