package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"github.com/urbanflow/trip-demand/pkg/redis"
	"go.uber.org/zap"
)

// latestCacheTTL bounds staleness of the presentation-facing cache; the
// warehouse rows remain the source of truth.
const latestCacheTTL = 24 * time.Hour

// Repository persists forecast runs to the warehouse and mirrors the latest
// generation per scope into Redis for cheap presentation reads.
type Repository struct {
	db    *pgxpool.Pool
	cache *redis.Client
}

// NewRepository creates a forecast repository. cache may be nil when no
// Redis is configured.
func NewRepository(db *pgxpool.Pool, cache *redis.Client) *Repository {
	return &Repository{db: db, cache: cache}
}

// SaveResults stores one scope's forecasts for both models. Earlier
// generations for the scope stay queryable; consumers key on generation
// date to pick the latest.
func (r *Repository) SaveResults(ctx context.Context, results []*Result) error {
	rows := make([][]interface{}, 0)
	for _, result := range results {
		for _, p := range result.Points {
			rows = append(rows, []interface{}{
				result.Scope.Scope, string(result.Scope.Passenger), string(result.Model),
				result.GeneratedAt, p.TargetTime, p.Estimate, p.Lower, p.Upper,
			})
		}
	}

	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"forecasts"},
		[]string{"scope", "passenger_bucket", "model", "generated_at", "target_time", "estimate", "lower_bound", "upper_bound"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to save forecasts: %w", err)
	}

	r.cacheLatest(ctx, results)
	return nil
}

// SaveAccuracy stores held-out accuracy metrics for one scope's models
func (r *Repository) SaveAccuracy(ctx context.Context, results []*Result) error {
	for _, result := range results {
		if result.Accuracy == nil {
			continue
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO forecast_accuracy (scope, passenger_bucket, model, generated_at, mae, rmse, mape, samples)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			result.Scope.Scope, string(result.Scope.Passenger), string(result.Model),
			result.GeneratedAt, result.Accuracy.MAE, result.Accuracy.RMSE,
			result.Accuracy.MAPE, result.Accuracy.Samples,
		)
		if err != nil {
			return fmt.Errorf("failed to save forecast accuracy: %w", err)
		}
	}
	return nil
}

// cacheLatest mirrors results into Redis, best effort: a cache miss or
// failure never fails the run.
func (r *Repository) cacheLatest(ctx context.Context, results []*Result) {
	if r.cache == nil {
		return
	}
	for _, result := range results {
		payload, err := json.Marshal(result)
		if err != nil {
			continue
		}
		key := latestKey(result.Scope, result.Model)
		if err := r.cache.SetWithExpiration(ctx, key, payload, latestCacheTTL); err != nil {
			logger.WithContext(ctx).Warn("failed to cache forecast",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// GetLatestCached returns the cached latest forecast for a scope and model,
// or nil when the cache has no entry.
func (r *Repository) GetLatestCached(ctx context.Context, scope aggregate.ScopeKey, model ModelID) (*Result, error) {
	if r.cache == nil {
		return nil, nil
	}
	payload, err := r.cache.GetString(ctx, latestKey(scope, model))
	if err != nil {
		return nil, nil // treat any cache miss as absence
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached forecast: %w", err)
	}
	return &result, nil
}

func latestKey(scope aggregate.ScopeKey, model ModelID) string {
	return fmt.Sprintf("forecast:latest:%s:%s", scope, model)
}
