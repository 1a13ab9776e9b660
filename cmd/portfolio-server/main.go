// Package main provides the portfolio server entry point. It serves the
// portfolio and audit APIs and runs the asset cleanup and audit retention
// workers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/brandworks/portfolio-engine/pkg/assets"
	"github.com/brandworks/portfolio-engine/pkg/audit"
	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/cache"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
	"github.com/brandworks/portfolio-engine/pkg/database"
	"github.com/brandworks/portfolio-engine/pkg/ha"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		streamsPath  string
		logLevel     string
	)

	flag.StringVar(&listenAddr, "listen", envOrDefault("PORTFOLIO_LISTEN", ":8080"), "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres, mysql or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&streamsPath, "streams", os.Getenv("PORTFOLIO_STREAMS_FILE"), "Path to an optional streams definition file")
	flag.StringVar(&logLevel, "log-level", envOrDefault("PORTFOLIO_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	dbCfg := database.ConfigFromEnv()
	if databaseType != "" {
		dbCfg.Type = strings.ToLower(databaseType)
	}
	if databaseDSN != "" {
		dbCfg.DSN = databaseDSN
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	registry := streams.DefaultRegistry()
	if streamsPath != "" {
		registry, err = streams.LoadRegistryFile(streamsPath)
		if err != nil {
			glog.Fatalf("Failed to load streams: %v", err)
		}
	}

	assetCfg := assets.ConfigFromEnv()
	store, err := assets.New(assetCfg, logger)
	if err != nil {
		glog.Fatalf("Failed to configure asset storage: %v", err)
	}
	if ms, ok := store.(*assets.MinioStore); ok {
		if err := ms.EnsureBucket(ctx); err != nil {
			glog.Fatalf("Failed to prepare asset bucket: %v", err)
		}
	}

	cfg := serverConfig{
		Identity:     authz.IdentityConfigFromEnv(),
		Audit:        audit.AuditConfigFromEnv(),
		Cleanup:      cleanup.ConfigFromEnv(),
		HA:           ha.HAConfigFromEnv(),
		Invalidation: cache.InvalidationConfigFromEnv(),
		Assets:       store,
		MaxBytes:     assetCfg.MaxBytes,
		Streams:      registry,
	}

	a, err := newApp(db, cfg, logger)
	if err != nil {
		glog.Fatalf("Failed to initialize server: %v", err)
	}
	if err := a.migrate(ctx); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	logger.Info("starting portfolio server",
		"listen", listenAddr,
		"database", dbCfg.Type,
		"authMode", cfg.Identity.Mode,
		"streams", registry.Names(),
		"leaderElection", cfg.HA.LeaderElectionEnabled,
	)

	bgDone := make(chan struct{})
	go func() {
		defer close(bgDone)
		a.background(ctx, store)
	}()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case <-bgDone:
	case <-shutdownCtx.Done():
		logger.Warn("background workers did not stop in time")
	}

	logger.Info("portfolio server stopped")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
