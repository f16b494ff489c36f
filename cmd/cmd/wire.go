package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketwire/internal/batch"
	"marketwire/internal/cache"
	"marketwire/internal/classify"
	"marketwire/internal/config"
	"marketwire/internal/fetch"
	"marketwire/internal/llm"
	"marketwire/internal/logger"
	"marketwire/internal/metrics"
	"marketwire/internal/pipeline"
	"marketwire/internal/refdata"
	"marketwire/internal/score"
	"marketwire/internal/store"
)

// app bundles the wired components behind the commands.
type app struct {
	controller *pipeline.Controller
	batches    *batch.Manager
	metrics    *metrics.Collector
	store      *store.Store
	log        *slog.Logger
}

// buildApp wires the full pipeline from configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get()

	contentCache := cache.New(cfg.Cache.Capacity, config.Duration(cfg.Cache.TTL, cache.DefaultTTL))
	acquirer := fetch.New(contentCache, log,
		fetch.WithTimeout(config.Duration(cfg.Pipeline.FetchTimeout, 20*time.Second)),
		fetch.WithMinTextLength(cfg.Pipeline.MinContentLength),
	)

	llmClient, err := llm.NewClient(ctx, cfg.AI.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	ref := refdata.Load(cfg.RefData.Dir, log)
	orchestrator := classify.NewOrchestrator(llmClient, ref,
		config.Duration(cfg.Pipeline.ClassifyTimeout, classify.DefaultDeadline), log)
	engine := score.NewEngine(cfg.Scoring.Weights, ref)

	collector := metrics.NewCollector(cfg.Metrics.MaxSamples, cfg.Metrics.MaxRecentErrors)
	controller := pipeline.NewController(acquirer, orchestrator, engine, collector, log)

	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &app{
		controller: controller,
		batches:    batch.NewManager(controller, cfg.Batch.Concurrency, cfg.Batch.MaxRetainedTasks, log),
		metrics:    collector,
		store:      st,
		log:        log,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close store", "error", err)
	}
}
