package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"fish-feeder-backend/internal/api"
	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/scheduler"
	"fish-feeder-backend/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic feeder check",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, appStore := openStore(cfg)
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	runner := task.NewRunner(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, cfg.WorkerPool.TaskTimeout)
	runner.Start(ctx)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, cfg.Chat.Timeout, senders(cfg, appStore)...)
	pool.Start(ctx)

	clk := clock.Real{}
	c := newComponents(cfg, appStore, clk, runner, pool)

	go scheduler.NewService(c.engine, cfg.Feeder.CheckInterval).Run(ctx)

	handler := api.NewHandler(c.engine, c.reservations, appStore, clk, webpushOptions(cfg), api.Options{
		Location:     cfg.Feeder.Location,
		OnlineWindow: cfg.Feeder.OnlineWindow(),
		HistoryLimit: cfg.Feeder.HistoryLimit,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit:     rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst:     cfg.Server.RateLimitBurst,
		CacheTTL:      time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		OperatorToken: cfg.Server.OperatorToken,
		DeviceToken:   cfg.Server.DeviceToken,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received, stopping services...")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Printf("Pending tasks were not drained: %v", err)
	}

	log.Println("Server gracefully stopped")
	return nil
}
