// FraudGuard - Explainable fraud scoring for payment transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/fraudguard/internal/api"
	"github.com/opensource-finance/fraudguard/internal/assessment"
	"github.com/opensource-finance/fraudguard/internal/bus"
	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/config"
	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/explain"
	"github.com/opensource-finance/fraudguard/internal/features"
	"github.com/opensource-finance/fraudguard/internal/metrics"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/repository"
	"github.com/opensource-finance/fraudguard/internal/scoring"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
	"github.com/opensource-finance/fraudguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting fraudguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"threshold", cfg.Scoring.Threshold,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Tracing
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, Version)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	collector := metrics.New()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	go collector.StartDBStatsCollector(ctx, repo.DB(), 15*time.Second)
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	go sampleCacheHitRatio(ctx, cacheImpl, collector, 15*time.Second)
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the classifier once. Without one the server still starts, reports
	// not ready and answers every score request with 503.
	loadCtx, loadCancel := context.WithTimeout(ctx, 2*time.Minute)
	classifier, info, err := model.NewRepository(cfg.Model, cacheImpl, nil).Load(loadCtx)
	loadCancel()
	if err != nil {
		slog.Error("no classifier available", "error", err)
	} else {
		collector.SetModel(info.Version, info.Capability, info.Source)
		slog.Info("classifier loaded",
			"version", info.Version,
			"capability", info.Capability,
			"source", info.Source,
			"checksum", info.Checksum,
		)
	}

	// Initialize Scoring Pipeline
	encoder, err := features.NewEncoder(cfg.Scoring.TypeEncoding)
	if err != nil {
		slog.Error("invalid type encoding", "error", err)
		os.Exit(1)
	}
	policy, err := decision.NewPolicy(cfg.Scoring.Threshold)
	if err != nil {
		slog.Error("invalid decision policy", "error", err)
		os.Exit(1)
	}
	explainer, err := explain.NewEngine()
	if err != nil {
		slog.Error("failed to compile explanation rules", "error", err)
		os.Exit(1)
	}
	pipeline, err := scoring.New(encoder, classifier, policy, explainer, scoring.WithMetrics(collector))
	if err != nil {
		slog.Error("failed to initialize scoring pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring pipeline initialized",
		"threshold", pipeline.Threshold(),
		"capability", pipeline.Capability(),
		"rules_count", explainer.RulesCount(),
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("FRAUDGUARD_ASYNC_WORKER") == "true" {
		builder := assessment.Builder{
			Capability: pipeline.Capability(),
			Threshold:  pipeline.Threshold(),
		}
		if info != nil {
			builder.ModelVersion = info.Version
		}
		asyncWorker = worker.NewWorker(busImpl, repo, pipeline, builder)

		workerCfg := worker.Config{
			TenantIDs:   splitList(os.Getenv("FRAUDGUARD_TENANTS")),
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "tenant_count", len(workerCfg.TenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:             repo,
		Cache:            cacheImpl,
		Bus:              busImpl,
		Pipeline:         pipeline,
		Explainer:        explainer,
		Metrics:          collector,
		Model:            info,
		MaxMonetaryValue: cfg.Scoring.MaxMonetaryValue,
		AssessmentTTL:    cfg.Cache.AssessmentTTL,
		Version:          Version,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fraudguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version, info)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop taking requests before draining the worker.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("fraudguard shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// sampleCacheHitRatio publishes the local hit ratio of caches that track one.
func sampleCacheHitRatio(ctx context.Context, c domain.Cache, collector *metrics.Collector, interval time.Duration) {
	ratioer, ok := c.(interface{ HitRatio() float64 })
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.SetCacheHitRatio(ratioer.HitRatio())
		}
	}
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printBanner(cfg *domain.Config, version string, info *model.Info) {
	modelLine := "none (score requests return 503)"
	if info != nil {
		modelLine = fmt.Sprintf("%s (%s, %s)", info.Version, info.Capability, info.Source)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🛡️  FRAUDGUARD                ║")
	fmt.Println("  ║      Explainable Fraud Scoring Engine     ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:   %s\n", version)
	fmt.Printf("  Tier:      %s\n", cfg.Tier)
	fmt.Printf("  Model:     %s\n", modelLine)
	fmt.Printf("  Threshold: %.2f\n", cfg.Scoring.Threshold)
	fmt.Printf("  Server:    http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                  - Score a transaction")
	fmt.Println("    POST /score/async            - Queue a transaction for scoring")
	fmt.Println("    GET  /assessments            - List recent assessments")
	fmt.Println("    GET  /assessments/{id}       - Get assessment by ID")
	fmt.Println("    GET  /presets                - List example transactions")
	fmt.Println("    POST /presets/{name}/score   - Score an example transaction")
	fmt.Println("    GET  /rules                  - List explanation rules")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println("    GET  /metrics                - Prometheus metrics")
	fmt.Println()
}
