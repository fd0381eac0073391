package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xanmol/base64img-web/internal/api"
	"github.com/0xanmol/base64img-web/internal/config"
	"github.com/0xanmol/base64img-web/internal/normalize"
	"github.com/0xanmol/base64img-web/internal/ratelimit"
	"github.com/0xanmol/base64img-web/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), "base64img", cfg.Trace, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	if err := normalize.Startup(); err != nil {
		logger.Fatalf("rasterizer startup failed: %v", err)
	}
	defer normalize.Shutdown()

	normalizer, err := normalize.New()
	if err != nil {
		logger.Fatalf("build normalizer: %v", err)
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.Window)
		if err != nil {
			logger.Fatalf("build rate limiter: %v", err)
		}
	}

	app := api.NewServer(logger, normalizer, limiter, cfg)
	defer app.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
