package application

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
	"github.com/guardgate/guardgate/gateway/internal/domain/service"
	"github.com/guardgate/guardgate/gateway/internal/domain/tool"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/audit"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/config"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/ledger"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm/anthropic"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm/ollama"
	"github.com/guardgate/guardgate/gateway/internal/infrastructure/llm/openai"
	httpiface "github.com/guardgate/guardgate/gateway/internal/interfaces/http"
	"github.com/guardgate/guardgate/gateway/internal/interfaces/http/handlers"
	"github.com/guardgate/guardgate/gateway/pkg/safego"
)

// Options are the runtime knobs outside the policy file: where to listen,
// where to audit, whether to watch the policy file for drift.
type Options struct {
	PolicyPath  string
	HTTPHost    string
	HTTPPort    int
	Mode        string // debug, production
	AuditDBPath string // empty = log-only audit
	WatchPolicy bool
	Skills      tool.SkillRegistry // nil = grounding skipped
}

// App wires the frozen policy, the adapter registry, the pipeline and its
// collaborators into a running service.
type App struct {
	cfg      *config.PolicyConfig
	opts     Options
	logger   *zap.Logger
	registry *llm.Registry
	pipeline *service.Pipeline
	server   *httpiface.Server
	watcher  *config.PolicyWatcher
}

// NewApp assembles the application from a loaded policy.
func NewApp(cfg *config.PolicyConfig, opts Options, logger *zap.Logger) (*App, error) {
	registry := llm.NewRegistry(cfg.AgnosticSettings.AllowedProviders, logger)
	registerAdapters(registry, logger)

	pipeline := service.NewPipeline(cfg, logger)
	pipeline.SetCostLedger(ledger.NewCostLedger())

	var sink audit.Sink
	if opts.AuditDBPath != "" {
		sqliteSink, err := audit.NewSQLiteSink(opts.AuditDBPath)
		if err != nil {
			return nil, err
		}
		sink = sqliteSink
	} else {
		sink = audit.NewZapSink(logger)
	}
	pipeline.SetAuditSink(sink)

	completion := handlers.NewCompletionHandler(pipeline, registry, opts.Skills, logger)
	server := httpiface.NewServer(httpiface.Config{
		Host: opts.HTTPHost,
		Port: opts.HTTPPort,
		Mode: opts.Mode,
	}, completion, logger)

	app := &App{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		registry: registry,
		pipeline: pipeline,
		server:   server,
	}

	if opts.WatchPolicy && opts.PolicyPath != "" {
		watcher, err := config.NewPolicyWatcher(opts.PolicyPath, logger)
		if err != nil {
			logger.Warn("Policy watcher unavailable", zap.Error(err))
		} else {
			app.watcher = watcher
		}
	}

	return app, nil
}

// Start launches the HTTP server and the policy watcher.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("Starting guardgate",
		zap.String("project", a.cfg.ProjectName),
		zap.String("tier", string(a.cfg.SecurityTier)),
		zap.Any("allowed_providers", a.cfg.AgnosticSettings.AllowedProviders),
	)

	if a.watcher != nil {
		safego.Go(a.logger, "policy-watcher", func() {
			a.watcher.Run(ctx)
		})
	}

	return a.server.Start(ctx)
}

// Stop shuts down gracefully.
func (a *App) Stop(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.Warn("Policy watcher close failed", zap.Error(err))
		}
	}
	return a.server.Stop(ctx)
}

// Pipeline exposes the pipeline for embedding callers.
func (a *App) Pipeline() *service.Pipeline {
	return a.pipeline
}

// Registry exposes the adapter registry.
func (a *App) Registry() *llm.Registry {
	return a.registry
}

// registerAdapters installs one adapter per known provider. Credentials
// and base URLs come from the environment so the policy file stays pure
// policy.
func registerAdapters(registry *llm.Registry, logger *zap.Logger) {
	registry.Register(entity.ProviderAnthropic, anthropic.New(llm.AdapterConfig{
		BaseURL: os.Getenv("GUARDGATE_ANTHROPIC_BASE_URL"),
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
	}, logger))

	registry.Register(entity.ProviderOpenAI, openai.New(llm.AdapterConfig{
		BaseURL: os.Getenv("GUARDGATE_OPENAI_BASE_URL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}, logger))

	registry.Register(entity.ProviderOllama, ollama.New(llm.AdapterConfig{
		BaseURL: os.Getenv("GUARDGATE_OLLAMA_BASE_URL"),
	}, logger))
}
