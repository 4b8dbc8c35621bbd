package pipeline

import (
	"context"
	"time"

	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/internal/anomaly"
	"github.com/urbanflow/trip-demand/internal/forecast"
	"github.com/urbanflow/trip-demand/internal/normalize"
	"github.com/urbanflow/trip-demand/internal/trips"
)

// BatchReader delivers the raw monthly batch for one partition.
// The parquet reader in internal/normalize is the production implementation.
type BatchReader interface {
	Read(partition trips.Partition) (*normalize.RawBatch, error)
}

// TripStore persists and serves cleaned trip records.
type TripStore interface {
	// ReplaceCleaned overwrites the partition's cleaned output wholesale.
	ReplaceCleaned(ctx context.Context, partition trips.Partition, records []*trips.TripRecord) error

	// GetCleanedForPeriod returns cleaned records across every vehicle type.
	GetCleanedForPeriod(ctx context.Context, period trips.Period) ([]*trips.TripRecord, error)
}

// AggregateStore persists the materialized aggregation tables.
type AggregateStore interface {
	ReplaceResult(ctx context.Context, period trips.Period, result *aggregate.Result) error
}

// ForecastStore persists per-scope forecast results and accuracy metrics.
type ForecastStore interface {
	SaveResults(ctx context.Context, results []*forecast.Result) error
	SaveAccuracy(ctx context.Context, results []*forecast.Result) error
}

// AnomalyStore persists anomaly detection runs.
type AnomalyStore interface {
	SaveDetection(ctx context.Context, detection *anomaly.Detection) error
}

// RunStore tracks run and partition state. The aggregation barrier reads
// partition states from here, so a failed partition stays visible.
type RunStore interface {
	CreateRun(ctx context.Context, runID string, period trips.Period, startedAt time.Time) error
	UpdatePartition(ctx context.Context, runID string, state *PartitionState) error
	PartitionStates(ctx context.Context, runID string) ([]*PartitionState, error)
	FinishRun(ctx context.Context, runID string, summary *RunSummary) error
}
