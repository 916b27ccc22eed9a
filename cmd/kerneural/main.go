// Package main is the entry point for the kerneural rule pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kerneural/internal/api"
	"kerneural/internal/archive"
	"kerneural/internal/audit"
	"kerneural/internal/config"
	"kerneural/internal/cooldown"
	"kerneural/internal/engine"
	"kerneural/internal/event"
	"kerneural/internal/kafka"
	"kerneural/internal/logging"
	"kerneural/internal/metrics"
	"kerneural/internal/middleware"
	"kerneural/internal/pipeline"
	"kerneural/internal/queue"
	"kerneural/internal/rules"
	"kerneural/internal/startup"
	"kerneural/internal/synth"
	"kerneural/internal/triage"
)

var version = "dev"

func main() {
	var (
		configPath  string
		showVersion bool
		preflight   bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML config (default $KERNEURAL_CONFIG_PATH or "+config.DefaultPath+")")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&preflight, "preflight", false, "Run startup diagnostics and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("kerneural %s\n", version)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"events_path", cfg.Events.Path,
		"rule_store", cfg.Rules.StorePath,
		"llm_base_url", cfg.LLM.BaseURL,
		"llm_model", cfg.LLM.Model,
		"llm_api_key", logging.MaskAPIKey(cfg.LLM.APIKey),
		"cooldown_backend", cfg.Cooldown.Backend,
		"audit_kafka", cfg.Audit.KafkaEnabled,
		"archive_s3", cfg.Archive.Enabled,
	)
	if preflight {
		startup.PrintBanner(version)
	}
	diag := startup.NewDiagnostics(cfg, resolveConfigPath(configPath), logger)
	diag.RunAll(context.Background())
	if diag.HasErrors() {
		os.Exit(1)
	}
	if preflight {
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("kerneural stopped with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// resolveConfigPath reports which file the configuration came from, or ""
// when none was found.
func resolveConfigPath(path string) string {
	if path == "" {
		path = os.Getenv("KERNEURAL_CONFIG_PATH")
	}
	if path == "" {
		path = config.DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := event.NewFileSource(cfg.Events.Path, logger)
	defer source.Close()

	client := synth.NewChatClient(synth.ClientConfig{
		BaseURLs:    cfg.LLM.BaseURLs(),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	guard := synth.NewGuard(cfg.LLM.GuardMaxFailures, cfg.LLM.GuardCooldown)
	synthesizer := synth.NewBounded(client, cfg.LLM.Timeout, guard, logger)

	store := rules.NewStore(cfg.Rules.StorePath)
	recent := queue.NewRingBuffer(cfg.Events.RecentAlerts)
	reloads := engine.NewManager(
		engine.NewCommandReloader(cfg.Engine.ReloadCommand, cfg.Engine.ReloadTimeout),
		logger,
	)

	opts := pipeline.Options{
		Source:           source,
		Triage:           triage.ShouldSynthesize,
		Synthesizer:      synthesizer,
		Validator:        rules.NewValidator(logger),
		Store:            store,
		Reloader:         reloads,
		Recent:           recent,
		PollInterval:     cfg.Events.PollInterval,
		RejectDuplicates: cfg.Rules.DuplicatePolicy == "reject",
		Logger:           logger,
	}

	limiter, closeLimiter, err := newLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()
	opts.Cooldown = limiter

	var (
		producer *kafka.Producer
		trail    *audit.Trail
	)
	if cfg.Audit.KafkaEnabled {
		producer, err = kafka.NewProducer(cfg.Audit.Kafka, logger)
		if err != nil {
			return fmt.Errorf("audit producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka producer close error", "error", err)
			}
		}()
		trail = audit.NewTrail(producer, logger)
	} else {
		trail = audit.NewTrail(nil, logger)
	}
	opts.Recorder = trail

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver, err = archive.New(ctx, cfg.Archive.S3, logger)
		if err != nil {
			return fmt.Errorf("rule archive: %w", err)
		}
		opts.Archiver = archiver
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts.Metrics = m
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	var server *http.Server
	if cfg.Server.Enabled {
		var metricsHandler http.Handler
		if m != nil {
			metricsHandler = m.Handler()
		}
		mux := http.NewServeMux()
		api.NewStatusAPI(orch, store, store.Path(), metricsHandler).RegisterRoutes(mux)

		server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           middleware.Wrap(mux, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("starting status server", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "error", err)
				cancel()
			}
		}()
	}

	// Phase changes at debug level.
	updates, unsubscribe := orch.Subscribe(16)
	defer unsubscribe()
	go func() {
		for st := range updates {
			logger.Debug("pipeline status", "phase", st.Phase, "action", st.LastAction, "cycle_id", st.CycleID)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-quit:
			logger.Info("shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("monitoring engine alerts", "path", source.Path(), "version", version)
	runErr := orch.Run(ctx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}

	st := orch.Status()
	srcMetrics := source.Metrics()
	reloadMetrics := reloads.Metrics()
	recentMetrics := recent.Metrics()
	recorded, dropped := trail.Stats()
	logger.Info("shutdown complete",
		"events", st.EventCount,
		"rules_applied", st.RulesApplied,
		"rejections", st.Rejections,
		"synthesis_failures", st.SynthesisFailures,
		"reload_attempts", reloadMetrics.Attempts,
		"reload_failures", reloadMetrics.Failures,
		"events_delivered", srcMetrics.Delivered,
		"lines_skipped", srcMetrics.Skipped,
		"stream_reopens", srcMetrics.Reopened,
		"recent_alerts_held", recentMetrics.Depth,
		"recent_alerts_evicted", recentMetrics.Dropped,
		"audit_records", recorded,
		"audit_dropped", dropped,
	)
	if producer != nil {
		pm := producer.Metrics()
		logger.Info("audit metrics", "published", pm.Published, "failed", pm.Failed)
	}
	if archiver != nil {
		am := archiver.Metrics()
		logger.Info("archive metrics", "uploads", am.Uploads, "failures", am.Failures)
	}

	return runErr
}

// newLimiter builds the configured cooldown limiter. The returned close
// function is always safe to call.
func newLimiter(cfg *config.Config, logger *slog.Logger) (cooldown.Limiter, func(), error) {
	noop := func() {}
	switch cfg.Cooldown.Backend {
	case "memory":
		return cooldown.NewMemory(cfg.Cooldown.Size, cfg.Cooldown.TTL), noop, nil
	case "redis":
		client, err := cooldown.NewRedisClient(cfg.Cooldown.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("cooldown redis: %w", err)
		}
		logger.Info("cooldown limiter connected", "backend", "redis", "addr", cfg.Cooldown.Redis.Addr)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}
		return cooldown.NewRedis(client, cfg.Cooldown.Redis.KeyPrefix, cfg.Cooldown.TTL, logger), closeFn, nil
	default:
		return nil, noop, nil
	}
}
