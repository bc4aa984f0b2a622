package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/application"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/logger"
)

const (
	cliName    = "guardgate"
	cliVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "guardgate is a policy-enforcing LLM proxy",
		Long:  "guardgate runs every model call through a fixed interceptor pipeline: injection scan, PII masking, policy alignment, schema enforcement, tool grounding and hallucination scraping.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringP("policy", "p", "policy.json", "path to the policy file")
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	serveCmd.Flags().Int("port", 8080, "HTTP listen port")
	serveCmd.Flags().String("mode", "production", "server mode: debug or production")
	serveCmd.Flags().String("audit-db", "", "SQLite audit database path (empty = log only)")
	serveCmd.Flags().Bool("watch", true, "warn when the policy file changes on disk")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check <policy.json>",
		Short: "Validate a policy file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	policyPath, _ := cmd.Flags().GetString("policy")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	mode, _ := cmd.Flags().GetString("mode")
	auditDB, _ := cmd.Flags().GetString("audit-db")
	watch, _ := cmd.Flags().GetBool("watch")

	logFormat := "json"
	if mode == "debug" {
		logFormat = "console"
	}
	log, err := logger.NewLogger(logger.Config{
		Level:      "info",
		Format:     logFormat,
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(policyPath)
	if err != nil {
		log.Fatal("Failed to load policy", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, application.Options{
		PolicyPath:  policyPath,
		HTTPHost:    host,
		HTTPPort:    port,
		Mode:        mode,
		AuditDBPath: auditDB,
		WatchPolicy: watch,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

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
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", args[0], err)
		os.Exit(1)
	}

	fmt.Printf("✓ %s\n", args[0])
	fmt.Printf("  project:   %s\n", cfg.ProjectName)
	fmt.Printf("  tier:      %s\n", cfg.SecurityTier)
	fmt.Printf("  providers: %v\n", cfg.AgnosticSettings.AllowedProviders)
	fmt.Printf("  ceiling:   $%.6f/call\n", cfg.AgnosticSettings.MaxTokenSpendPerCall)
	fmt.Printf("  whitelist: %d packages\n", len(cfg.DependencyWhitelist))
	return nil
}
