package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsrun/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override environment variables
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen host")
	examples := flag.String("examples", cfg.Sandbox.ExamplesDir, "Directory searched first for relative require()")
	timeout := flag.Duration("timeout", cfg.Sandbox.ExecTimeout, "Interrupt snippets running longer than this (0 = never)")
	maxConcurrent := flag.Int64("max-concurrent", cfg.Sandbox.MaxConcurrent, "Concurrent executions (0 = unbounded, 1 = serial)")
	metricsAddr := flag.String("metrics", cfg.Metrics.Addr, "Prometheus listen address (empty = off)")
	verbose := flag.Bool("verbose", cfg.Logging.Verbose, "Mirror snippet console output and log at debug level")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging (colored console)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Sandbox.ExamplesDir = *examples
	cfg.Sandbox.ExecTimeout = *timeout
	cfg.Sandbox.MaxConcurrent = *maxConcurrent
	cfg.Metrics.Addr = *metricsAddr
	cfg.Logging.Verbose = *verbose
	cfg.Logging.Development = *dev
	if err := cfg.Normalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithLevel(cfg.EffectiveLogLevel(), cfg.Logging.Development)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		defer logging.Recover(logger.Logger, "http-server")
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
			os.Exit(1)
		}
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
