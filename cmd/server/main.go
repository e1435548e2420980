package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evn/cleanops/config"
	"github.com/evn/cleanops/db"
	"github.com/evn/cleanops/internal/pkg/logger"
	"github.com/evn/cleanops/internal/routes"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.NewConfig()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "cleanops")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient := config.NewRedisClient(cfg)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Warn("redis is not reachable, live activity will be degraded", zap.Error(err))
	}

	if err := routes.EnsureUploadDirs(cfg.UploadDir); err != nil {
		return fmt.Errorf("create upload directories: %w", err)
	}

	app := routes.Setup(ctx, cfg, database, redisClient, zlog)
	go app.Hub.Run(ctx)
	go routes.ActivitySweepLoop(ctx, app.Activity, cfg.SweepInterval, app.PublishActivity, zlog.Named("sweep"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown failed", zap.Error(err))
	}
	// контроллеры закрывают сканеры, освобождают камеры и дописывают очередь сохранения
	app.Registry.Shutdown()
	return nil
}
