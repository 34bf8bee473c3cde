package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/compozy/logscout/engine/infra/sqlite"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/engine/llm/orchestrator"
	"github.com/compozy/logscout/engine/logs"
	"github.com/compozy/logscout/pkg/config"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds everything a question-answering command needs.
type app struct {
	store    *sqlite.Store
	client   llmadapter.LLMClient
	orch     *orchestrator.Orchestrator
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

// appDeps lets tests swap the LLM client.
type appDeps struct {
	newClient func(cfg *llmadapter.ProviderConfig) (llmadapter.LLMClient, error)
}

var defaultDeps = appDeps{newClient: llmadapter.NewClient}

func openStore(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	return sqlite.NewStore(ctx, &sqlite.Config{Path: cfg.Store.Path})
}

func newApp(ctx context.Context, cfg *config.Config, metricsAddr string, deps appDeps) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close(ctx)
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tools, err := logs.NewRegistry(sqlite.NewLogRepo(a.store.DB()), toolOptions(cfg))
	if err != nil {
		return nil, err
	}
	a.client, err = deps.newClient(providerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.orch, err = orchestrator.New(
		ctx,
		a.client,
		tools,
		orchestratorConfig(cfg),
		orchestrator.WithMetrics(orchestrator.NewMetrics(a.registry)),
	)
	if err != nil {
		return nil, err
	}
	if metricsAddr != "" {
		a.shutdown, err = serveMetrics(ctx, metricsAddr, a.registry)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	log := logger.FromContext(ctx)
	if a.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := a.shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to stop metrics server", "error", err)
		}
		cancel()
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			log.Warn("Failed to close LLM client", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			log.Warn("Failed to close log store", "error", err)
		}
	}
}

func providerConfig(cfg *config.Config) *llmadapter.ProviderConfig {
	return &llmadapter.ProviderConfig{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey.Value(),
		BaseURL:           cfg.LLM.BaseURL,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Timeout:           cfg.LLM.Timeout,
		Retry: llmadapter.RetryConfig{
			Attempts:    cfg.LLM.RetryAttempts,
			BackoffBase: cfg.LLM.RetryBackoff,
			BackoffMax:  cfg.LLM.RetryMaxBackoff,
			Jitter:      true,
		},
	}
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.SystemPrompt = cfg.Orchestrator.SystemPrompt
	oc.MaxToolIterations = cfg.Orchestrator.MaxToolIterations
	oc.MaxRetryAttempts = cfg.Orchestrator.MaxRetryAttempts
	oc.AutoRetryEnabled = cfg.Orchestrator.AutoRetryEnabled
	oc.IntentDetectionEnabled = cfg.Orchestrator.IntentDetectionEnabled
	oc.TimeExpansionFactor = cfg.Orchestrator.TimeExpansionFactor
	oc.IntentConfidenceThreshold = cfg.Orchestrator.IntentConfidenceThreshold
	oc.MaxConcurrentTools = cfg.Orchestrator.MaxConcurrentTools
	oc.Temperature = cfg.LLM.Temperature
	oc.MaxTokens = int32(cfg.LLM.MaxTokens) //nolint:gosec // bounded by config validation
	return oc
}

func toolOptions(cfg *config.Config) logs.Options {
	return logs.Options{
		DefaultLimit: cfg.Tools.DefaultLimit,
		MaxLimit:     cfg.Tools.MaxLimit,
		CacheSize:    cfg.Tools.CacheSize,
		CacheTTL:     cfg.Tools.CacheTTL,
		Redact:       cfg.Tools.Redact,
	}
}

// serveMetrics exposes reg on addr until the returned shutdown is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := logger.FromContext(ctx)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", "error", err)
		}
	}()
	log.Info("Serving metrics", "addr", ln.Addr().String())
	return srv.Shutdown, nil
}
