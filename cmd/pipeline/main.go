package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/internal/anomaly"
	"github.com/urbanflow/trip-demand/internal/forecast"
	"github.com/urbanflow/trip-demand/internal/normalize"
	"github.com/urbanflow/trip-demand/internal/pipeline"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/zones"
	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/database"
	"github.com/urbanflow/trip-demand/pkg/health"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"github.com/urbanflow/trip-demand/pkg/redis"
)

func main() {
	periodFlag := flag.String("period", "", "monthly period to process, e.g. 2024-03 (default: previous month)")
	throughFlag := flag.String("through", "analytics", "last stage to run: clean, aggregate, or analytics")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load("pipeline")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Get()

	period, err := resolvePeriod(*periodFlag)
	if err != nil {
		log.Fatal("Invalid period", zap.Error(err))
	}
	through := pipeline.Stage(*throughFlag)
	if !pipeline.ValidStage(through) {
		log.Fatal("Invalid stage", zap.String("through", *throughFlag))
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	log.Info("Connected to PostgreSQL")

	// Connect to Redis (forecast cache; the pipeline runs without it)
	var cache *redis.Client
	if cache, err = redis.NewRedisClient(&cfg.Redis); err != nil {
		log.Warn("Redis unavailable, latest-forecast cache disabled", zap.Error(err))
		cache = nil
	} else {
		defer cache.Close()
		log.Info("Connected to Redis")
	}

	// Load and validate the zone enumeration
	lookup, err := zones.Load(cfg.Ingestion.ZoneLookupPath)
	if err != nil {
		log.Fatal("Failed to load zone lookup", zap.Error(err))
	}
	if err := lookup.Validate(); err != nil {
		log.Fatal("Zone lookup failed validation", zap.Error(err))
	}
	log.Info("Zone lookup loaded", zap.Int("zones", lookup.Count()))

	// Expose Prometheus metrics and health for the duration of the run
	checks := map[string]health.Check{"database": health.DatabaseChecker(db)}
	if cache != nil {
		checks["redis"] = health.RedisChecker(cache)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health.Handler(checks))
	metricsServer := &http.Server{
		Addr:    ":" + cfg.App.MetricsPort,
		Handler: mux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	defer metricsServer.Shutdown(context.Background()) //nolint:errcheck

	// Wire the runner
	runner := pipeline.NewRunner(cfg,
		normalize.NewReader(cfg.Ingestion.RawDataDir),
		trips.NewRepository(db),
		aggregate.NewRepository(db),
		forecast.NewRepository(db, cache),
		anomaly.NewRepository(db),
		pipeline.NewRepository(db),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting trip-demand pipeline",
		zap.String("period", period.String()),
		zap.String("through", string(through)))

	summary, err := runner.RunThrough(ctx, period, through)
	if summary != nil {
		logSummary(log, summary)
	}
	if err != nil {
		log.Error("Pipeline run failed", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

// resolvePeriod parses -period, defaulting to the month before the current one
func resolvePeriod(value string) (trips.Period, error) {
	if value == "" {
		now := time.Now().UTC()
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return trips.Period{Year: prev.Year(), Month: prev.Month()}, nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return trips.Period{}, fmt.Errorf("expected YYYY-MM: %w", err)
	}
	return trips.Period{Year: t.Year(), Month: t.Month()}, nil
}

func logSummary(log *zap.Logger, summary *pipeline.RunSummary) {
	for _, p := range summary.Partitions {
		fields := []zap.Field{
			zap.String("partition", p.Partition.String()),
			zap.String("status", string(p.Status)),
			zap.Int("input", p.Input),
			zap.Int("malformed", p.Malformed),
			zap.Int("accepted", p.Accepted),
		}
		for rule, count := range p.Rejected {
			fields = append(fields, zap.Int("rejected_"+string(rule), count))
		}
		if p.Error != "" {
			fields = append(fields, zap.String("error", p.Error))
		}
		log.Info("Partition result", fields...)
	}
	for _, s := range summary.Scopes {
		log.Info("Scope result",
			zap.String("scope", s.Scope),
			zap.String("forecast", string(s.Forecast)),
			zap.String("anomaly", string(s.Anomaly)))
	}
	log.Info("Run summary",
		zap.String("run_id", summary.RunID),
		zap.String("period", summary.Period.String()),
		zap.Int("partitions_completed", summary.CompletedPartitions()),
		zap.Int("records_accepted", summary.TotalAccepted()),
		zap.Int("scopes", len(summary.Scopes)),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
		zap.String("fatal", summary.Fatal))
}
