package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"buildflow/client"
	"buildflow/internal/api"
	"buildflow/internal/config"
	"buildflow/internal/logger"
	"buildflow/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerLevel := config.GetLogLevel()
	logger.Init(loggerLevel)
	logger.Info("Starting buildflow service", "log_level", loggerLevel)

	if err := storage.Init(cfg.Database.Path); err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	buildClient, err := client.New(client.Config{
		URL:             cfg.Jenkins.URL,
		Username:        cfg.Jenkins.Username,
		Token:           cfg.Jenkins.Token,
		CrumbEnabled:    cfg.Jenkins.CrumbEnabled,
		FirstCheckDelay: cfg.Trigger.FirstCheckDelay,
		PollPeriod:      cfg.Trigger.PollPeriod,
		BuildTimeout:    cfg.Trigger.BuildTimeout,
		HTTPTimeout:     time.Duration(cfg.Jenkins.Timeout) * time.Second,
	})
	if err != nil {
		logger.Error("Failed to construct client", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(*cfg, buildClient)

	// Read PORT from environment variable if set
	port := cfg.Server.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil && p > 0 {
			port = p
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Allow long-running trigger waits to complete
	shutdownTimeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown", "timeout", shutdownTimeout.String())

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err, "timeout", shutdownTimeout.String())
	} else {
		logger.Info("Server shutdown gracefully")
	}

	if err := storage.Close(); err != nil {
		logger.Error("Failed to close database connection", "error", err)
	}

	logger.Info("Server stopped")
}
