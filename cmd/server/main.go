package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/andyjduncan/eurosight/internal/broadcast"
	"github.com/andyjduncan/eurosight/internal/config"
	"github.com/andyjduncan/eurosight/internal/coordination"
	"github.com/andyjduncan/eurosight/internal/logging"
	"github.com/andyjduncan/eurosight/internal/redis"
	"github.com/andyjduncan/eurosight/internal/server"
	"github.com/andyjduncan/eurosight/internal/session"
	"github.com/andyjduncan/eurosight/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, hub *websocket.Hub, cancelPropagator context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelPropagator()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := redis.NewClient(setupCtx, cfg.RedisURL)
	cancelSetup()
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	ledger := redis.NewLedger(redisClient, cfg.TableName)
	feed := redis.NewFeed(redisClient, cfg.TableName)

	hub := websocket.NewHub(clock)

	allocator := session.NewAllocator(ledger)
	aggregator := session.NewAggregator(ledger)
	bootstrapper := session.NewBootstrapper(ledger, aggregator)
	sender := broadcast.NewSender(ledger, hub)
	propagator := coordination.NewPropagator(ledger, bootstrapper, aggregator, sender)

	propagatorCtx, cancelPropagator := context.WithCancel(context.Background())
	go func() {
		if err := propagator.Run(propagatorCtx, feed); err != nil {
			slog.Error("Change propagator exited", "error", err)
		}
	}()

	srv := server.NewServer(cfg, ledger, allocator, aggregator, bootstrapper, sender, hub, redisClient, clock)

	done := runGracefulShutdown(srv, hub, cancelPropagator)

	slog.Info("Server listening", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
