package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tonerelay/internal/cluster"
	"tonerelay/internal/config"
	"tonerelay/internal/logging"
	"tonerelay/internal/relay"
	"tonerelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("relay_server_failed", "error", err.Error())
		os.Exit(1)
	}
}

// run owns every resource of the process, so its defers fire before main exits.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	hub := relay.NewHub()
	hub.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ClusterEnabled() {
		bridge, err := cluster.NewRedisBridge(cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return fmt.Errorf("cluster setup failed: %w", err)
		}
		defer bridge.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = bridge.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("cluster unreachable: %w", err)
		}

		hub.SetPublisher(bridge)
		go func() {
			if err := bridge.Run(ctx, hub); err != nil {
				logger.Error("cluster_subscription_failed", "error", err.Error())
			}
		}()
		logger.Info("cluster_enabled", "channel", cfg.RedisChannel, "origin", bridge.Origin())
	}

	srv := server.New(cfg, hub)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server_stopped_gracefully")
	return nil
}
