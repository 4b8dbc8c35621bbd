package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/internal/anomaly"
	"github.com/urbanflow/trip-demand/internal/forecast"
	"github.com/urbanflow/trip-demand/internal/normalize"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/validate"
	"github.com/urbanflow/trip-demand/pkg/common"
	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"github.com/urbanflow/trip-demand/pkg/metrics"
	"github.com/urbanflow/trip-demand/pkg/resilience"
)

// Runner drives one monthly batch run through normalization, cleaning,
// aggregation, forecasting and anomaly detection. Each stage materializes
// its output wholesale before the next stage starts.
type Runner struct {
	cfg        *config.Config
	reader     BatchReader
	normalizer *normalize.Service
	cleaner    *validate.Service
	aggregator *aggregate.Service
	forecaster *forecast.Service
	detector   *anomaly.Service

	tripStore      TripStore
	aggregateStore AggregateStore
	forecastStore  ForecastStore
	anomalyStore   AnomalyStore
	runStore       RunStore

	retry resilience.RetryConfig
}

// NewRunner creates a Runner wired to the given reader and stores
func NewRunner(cfg *config.Config, reader BatchReader, tripStore TripStore,
	aggregateStore AggregateStore, forecastStore ForecastStore,
	anomalyStore AnomalyStore, runStore RunStore) *Runner {
	retry := resilience.FromConfig(&cfg.Retry)
	retry.IsRetryable = common.IsTransient

	return &Runner{
		cfg:            cfg,
		reader:         reader,
		normalizer:     normalize.NewService(),
		cleaner:        validate.NewService(&cfg.Cleaning),
		aggregator:     aggregate.NewService(),
		forecaster:     forecast.NewService(&cfg.Forecast),
		detector:       anomaly.NewService(&cfg.Anomaly),
		tripStore:      tripStore,
		aggregateStore: aggregateStore,
		forecastStore:  forecastStore,
		anomalyStore:   anomalyStore,
		runStore:       runStore,
		retry:          retry,
	}
}

// Stage names a pipeline stage a run may stop after.
type Stage string

const (
	StageClean     Stage = "clean"
	StageAggregate Stage = "aggregate"
	StageAnalytics Stage = "analytics"
)

// ValidStage reports whether s names a stage
func ValidStage(s Stage) bool {
	switch s {
	case StageClean, StageAggregate, StageAnalytics:
		return true
	}
	return false
}

// Run executes one batch run for the period, end to end. The returned
// summary lists every partition and scope that was attempted; it is non-nil
// whenever the run got far enough to be created.
func (r *Runner) Run(ctx context.Context, period trips.Period) (*RunSummary, error) {
	return r.RunThrough(ctx, period, StageAnalytics)
}

// RunThrough executes the run up to and including the named stage. Earlier
// stages still materialize their output wholesale, so a later invocation
// can pick up from the warehouse.
func (r *Runner) RunThrough(ctx context.Context, period trips.Period, last Stage) (*RunSummary, error) {
	if !ValidStage(last) {
		return nil, fmt.Errorf("unknown stage %q", last)
	}
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx)

	summary := &RunSummary{RunID: runID, Period: period, StartedAt: time.Now().UTC()}

	if _, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.runStore.CreateRun(ctx, runID, period, summary.StartedAt)
	}); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	log.Info("starting batch run", zap.String("period", period.String()))

	if err := r.cleanStage(ctx, runID, period); err != nil {
		return r.finish(ctx, summary, err)
	}

	states, err := r.runStore.PartitionStates(ctx, runID)
	if err != nil {
		return r.finish(ctx, summary, fmt.Errorf("failed to read partition states: %w", err))
	}
	summary.Partitions = states

	if err := checkBarrier(states); err != nil {
		return r.finish(ctx, summary, err)
	}
	if last == StageClean {
		return r.finish(ctx, summary, nil)
	}

	result, err := r.aggregateStage(ctx, period)
	if err != nil {
		return r.finish(ctx, summary, err)
	}

	lastDay := period.End().AddDate(0, 0, -1)
	for _, h := range r.aggregator.RankHotspots(result, lastDay, 5) {
		log.Info("hotspot zone",
			zap.Time("day", h.Day),
			zap.Int("rank", h.Rank),
			zap.Int("zone", h.ZoneID),
			zap.Int64("trips", h.Trips),
			zap.Float64("city_share_pct", h.TripPct))
	}
	if last == StageAggregate {
		return r.finish(ctx, summary, nil)
	}

	scopes, err := r.analyticsStage(ctx, period, result)
	summary.Scopes = scopes
	if err != nil {
		return r.finish(ctx, summary, err)
	}

	log.Info("batch run complete",
		zap.Int("partitions_completed", summary.CompletedPartitions()),
		zap.Int("records_accepted", summary.TotalAccepted()),
		zap.Int("scopes", len(summary.Scopes)))
	return r.finish(ctx, summary, nil)
}

// finish persists the summary whatever the outcome. Silence is never an
// acceptable result for a run that was attempted.
func (r *Runner) finish(ctx context.Context, summary *RunSummary, runErr error) (*RunSummary, error) {
	summary.FinishedAt = time.Now().UTC()
	if runErr != nil {
		summary.Fatal = runErr.Error()
	}

	saveCtx := context.WithoutCancel(ctx)
	if _, err := resilience.Retry(saveCtx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.runStore.FinishRun(ctx, summary.RunID, summary)
	}); err != nil {
		logger.WithContext(ctx).Error("failed to persist run summary", zap.Error(err))
	}
	return summary, runErr
}

// cleanStage normalizes and cleans every partition of the period
// concurrently. A partition that fails is recorded as failed and does not
// stop its siblings; only cancellation aborts the stage.
func (r *Runner) cleanStage(ctx context.Context, runID string, period trips.Period) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.App.PartitionWorkers)

	for _, vt := range trips.AllVehicleTypes {
		partition := trips.Partition{VehicleType: vt, Period: period}
		g.Go(func() error {
			return r.processPartition(gctx, runID, partition)
		})
	}
	return g.Wait()
}

func (r *Runner) processPartition(ctx context.Context, runID string, partition trips.Partition) error {
	log := logger.WithContext(ctx).With(zap.String("partition", partition.String()))

	state := &PartitionState{Partition: partition, Status: StatusRunning, UpdatedAt: time.Now().UTC()}
	if err := r.savePartition(ctx, runID, state); err != nil {
		return fmt.Errorf("failed to mark partition running: %w", err)
	}

	start := time.Now()
	err := r.cleanPartition(ctx, partition, state)
	metrics.ObserveStage("clean", time.Since(start))

	// A partition interrupted mid-stage must never read as completed, or
	// the aggregation barrier would admit a half-written upstream.
	if ctxErr := ctx.Err(); ctxErr != nil {
		state.Status = StatusFailed
		state.Error = ctxErr.Error()
		state.UpdatedAt = time.Now().UTC()
		r.savePartition(context.WithoutCancel(ctx), runID, state) //nolint:errcheck
		return ctxErr
	}

	if err != nil {
		state.Status = StatusFailed
		state.Error = err.Error()
		state.UpdatedAt = time.Now().UTC()
		log.Error("partition failed", zap.Error(err))
		return r.savePartition(ctx, runID, state)
	}

	state.Status = StatusCompleted
	state.UpdatedAt = time.Now().UTC()
	log.Info("partition cleaned",
		zap.Int("input", state.Input),
		zap.Int("accepted", state.Accepted),
		zap.Int("malformed", state.Malformed))
	return r.savePartition(ctx, runID, state)
}

func (r *Runner) cleanPartition(ctx context.Context, partition trips.Partition, state *PartitionState) error {
	raw, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return r.reader.Read(partition)
	})
	if err != nil {
		return fmt.Errorf("failed to read raw batch: %w", err)
	}
	batch := raw.(*normalize.RawBatch)

	records, normReport, err := r.normalizer.Normalize(batch)
	if err != nil {
		return err
	}
	state.Input = normReport.Input
	state.Malformed = normReport.Malformed

	accepted, cleanReport := r.cleaner.Clean(partition, records)
	state.Accepted = cleanReport.Accepted
	state.Rejected = cleanReport.Rejected

	_, err = resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.tripStore.ReplaceCleaned(ctx, partition, accepted)
	})
	if err != nil {
		return fmt.Errorf("failed to store cleaned records: %w", err)
	}
	return nil
}

func (r *Runner) savePartition(ctx context.Context, runID string, state *PartitionState) error {
	_, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.runStore.UpdatePartition(ctx, runID, state)
	})
	return err
}

// checkBarrier admits aggregation only when every vehicle type's partition
// for the period completed.
func checkBarrier(states []*PartitionState) error {
	completed := make(map[trips.VehicleType]bool, len(states))
	for _, s := range states {
		if s.Status == StatusCompleted {
			completed[s.Partition.VehicleType] = true
		}
	}
	var missing []string
	for _, vt := range trips.AllVehicleTypes {
		if !completed[vt] {
			missing = append(missing, string(vt))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("partitions %v not completed: %w", missing, common.ErrUpstreamIncomplete)
	}
	return nil
}

func (r *Runner) aggregateStage(ctx context.Context, period trips.Period) (*aggregate.Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveStage("aggregate", time.Since(start)) }()

	cleaned, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return r.tripStore.GetCleanedForPeriod(ctx, period)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cleaned records: %w", err)
	}

	result, err := r.aggregator.Aggregate(period, cleaned.([]*trips.TripRecord))
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}

	_, err = resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.aggregateStore.ReplaceResult(ctx, period, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store aggregates: %w", err)
	}
	return result, nil
}

// analyticsStage forecasts and scores every active scope concurrently.
// Insufficient history is an outcome, not an error; only cancellation or a
// store failure aborts the stage.
func (r *Runner) analyticsStage(ctx context.Context, period trips.Period, result *aggregate.Result) ([]*ScopeSummary, error) {
	start := time.Now()
	defer func() { metrics.ObserveStage("analytics", time.Since(start)) }()

	scopes := r.aggregator.ActiveScopes(result)
	summaries := make([]*ScopeSummary, len(scopes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.App.ScopeWorkers)

	for i, scope := range scopes {
		i, scope := i, scope
		g.Go(func() error {
			summaries[i] = r.processScope(gctx, period, result, scope)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return compactSummaries(summaries), err
	}
	return summaries, nil
}

func (r *Runner) processScope(ctx context.Context, period trips.Period, result *aggregate.Result, scope aggregate.ScopeKey) *ScopeSummary {
	series := aggregate.BuildSeries(result.Hourly, scope.Scope, scope.Passenger, period.Start(), period.End(), time.Hour)
	now := time.Now().UTC()
	summary := &ScopeSummary{Scope: scope.String()}

	summary.Forecast = r.forecastScope(ctx, scope, series, now, summary)
	metrics.ScopeOutcome("forecast", string(summary.Forecast))

	summary.Anomaly = r.scoreScope(ctx, scope, series, now, summary)
	metrics.ScopeOutcome("anomaly", string(summary.Anomaly))

	return summary
}

func (r *Runner) forecastScope(ctx context.Context, scope aggregate.ScopeKey, series *aggregate.Series, now time.Time, summary *ScopeSummary) ScopeOutcome {
	results, err := r.forecaster.Forecast(scope, series, now)
	if errors.Is(err, common.ErrInsufficientData) {
		summary.Detail = err.Error()
		return OutcomeInsufficientData
	}
	if err != nil {
		summary.Detail = err.Error()
		return OutcomeFailed
	}

	_, err = resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		if err := r.forecastStore.SaveResults(ctx, results); err != nil {
			return nil, err
		}
		return nil, r.forecastStore.SaveAccuracy(ctx, results)
	})
	if err != nil {
		summary.Detail = err.Error()
		return OutcomeFailed
	}
	return OutcomeCompleted
}

func (r *Runner) scoreScope(ctx context.Context, scope aggregate.ScopeKey, series *aggregate.Series, now time.Time, summary *ScopeSummary) ScopeOutcome {
	detection, err := r.detector.Detect(scope, series, now)
	if errors.Is(err, common.ErrInsufficientData) {
		if summary.Detail == "" {
			summary.Detail = err.Error()
		}
		return OutcomeInsufficientData
	}
	if err != nil {
		summary.Detail = err.Error()
		return OutcomeFailed
	}

	_, err = resilience.Retry(ctx, r.retry, func(ctx context.Context) (interface{}, error) {
		return nil, r.anomalyStore.SaveDetection(ctx, detection)
	})
	if err != nil {
		summary.Detail = err.Error()
		return OutcomeFailed
	}
	return OutcomeCompleted
}

func compactSummaries(summaries []*ScopeSummary) []*ScopeSummary {
	out := summaries[:0]
	for _, s := range summaries {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
