package anomaly

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists anomaly runs to the warehouse. The threshold and its
// percentile are stored with the run metadata so the exact decision
// boundary can be reproduced later without retraining.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new anomaly repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveDetection stores one scope's run metadata and per-day records
func (r *Repository) SaveDetection(ctx context.Context, detection *Detection) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin anomaly save: %w", err)
	}
	defer tx.Rollback(ctx)

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO anomaly_runs (scope, passenger_bucket, generated_at, threshold, percentile, trained_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		detection.Scope.Scope, string(detection.Scope.Passenger), detection.GeneratedAt,
		detection.Threshold, detection.Percentile, detection.TrainedDays,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to save anomaly run: %w", err)
	}

	rows := make([][]interface{}, 0, len(detection.Records))
	for _, rec := range detection.Records {
		rows = append(rows, []interface{}{
			runID, rec.Day, rec.Error, rec.Flagged, rec.Threshold,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"anomaly_records"},
		[]string{"run_id", "day", "reconstruction_error", "flagged", "threshold"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to save anomaly records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit anomaly save: %w", err)
	}
	return nil
}
