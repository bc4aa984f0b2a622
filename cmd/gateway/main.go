package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/application"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/logger"
)

const (
	appName    = "guardgate"
	appVersion = "0.1.0"
)

func main() {
	var (
		policyPath = flag.String("policy", envOr("GUARDGATE_POLICY", "policy.json"), "path to the policy file")
		host       = flag.String("host", envOr("GUARDGATE_HOST", "0.0.0.0"), "HTTP listen host")
		port       = flag.Int("port", 8080, "HTTP listen port")
		mode       = flag.String("mode", envOr("GUARDGATE_MODE", "production"), "server mode: debug or production")
		auditDB    = flag.String("audit-db", os.Getenv("GUARDGATE_AUDIT_DB"), "SQLite audit database path (empty = log only)")
		watch      = flag.Bool("watch", true, "warn when the policy file changes on disk")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", appName, appVersion)
		return
	}

	logFormat := "json"
	if *mode == "debug" {
		logFormat = "console"
	}
	log, err := logger.NewLogger(logger.Config{
		Level:      "info",
		Format:     logFormat,
		OutputPath: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting guardgate",
		zap.String("version", appVersion),
		zap.String("policy", *policyPath),
	)

	cfg, err := config.Load(*policyPath)
	if err != nil {
		log.Fatal("Failed to load policy", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, application.Options{
		PolicyPath:  *policyPath,
		HTTPHost:    *host,
		HTTPPort:    *port,
		Mode:        *mode,
		AuditDBPath: *auditDB,
		WatchPolicy: *watch,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
