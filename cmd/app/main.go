package main

import (
	"RiseAndShine/internal/config"
	"RiseAndShine/pkg/log"
	"RiseAndShine/pkg/redis"
	"RiseAndShine/pkg/telemetry"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.NewLogger().Fatalf("Error loading .env file: %v", err)
	}
	logger := log.NewLogger()
	cfg := config.FromEnv()

	sink := telemetry.NewLogSink(logger, 512)

	server, err := config.NewServer(
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithConfig(cfg),
		config.WithValidator(config.NewValidator()),
		config.WithDatabase(),
		config.WithRedisServer(redis.New()),
		config.WithS3Client(),
		config.WithGeminiClient(),
		config.WithChatGPT(),
		config.WithTelemetry(sink),
		config.WithUtils(),
		config.WithMiddleware(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the drain outlives the server so dismissals during shutdown are logged
	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sink.Run(sinkCtx)
	})

	g.Go(func() error {
		logger.WithField("port", cfg.Port).Info("Server started successfully")
		return server.Run()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		stopSink()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Server stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
