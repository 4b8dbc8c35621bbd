package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanflow/trip-demand/internal/trips"
)

// Repository is the PostgreSQL-backed RunStore.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a run-state repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a new run row
func (r *Repository) CreateRun(ctx context.Context, runID string, period trips.Period, startedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pipeline_runs (run_id, period, started_at)
		VALUES ($1, $2, $3)
	`, runID, period.String(), startedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdatePartition upserts the state of one cleaning partition
func (r *Repository) UpdatePartition(ctx context.Context, runID string, state *PartitionState) error {
	rejected, err := json.Marshal(state.Rejected)
	if err != nil {
		return fmt.Errorf("failed to encode rejection counts: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO pipeline_partitions
			(run_id, vehicle_type, period, status, input_count, malformed_count,
			 accepted_count, rejected, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, vehicle_type) DO UPDATE SET
			status = EXCLUDED.status,
			input_count = EXCLUDED.input_count,
			malformed_count = EXCLUDED.malformed_count,
			accepted_count = EXCLUDED.accepted_count,
			rejected = EXCLUDED.rejected,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, runID, string(state.Partition.VehicleType), state.Partition.Period.String(),
		string(state.Status), state.Input, state.Malformed, state.Accepted,
		rejected, state.Error, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update partition state: %w", err)
	}
	return nil
}

// PartitionStates returns every partition state recorded for the run
func (r *Repository) PartitionStates(ctx context.Context, runID string) ([]*PartitionState, error) {
	rows, err := r.db.Query(ctx, `
		SELECT vehicle_type, period, status, input_count, malformed_count,
		       accepted_count, rejected, error, updated_at
		FROM pipeline_partitions
		WHERE run_id = $1
		ORDER BY vehicle_type
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition states: %w", err)
	}
	defer rows.Close()

	var states []*PartitionState
	for rows.Next() {
		var (
			state       PartitionState
			vehicleType string
			periodStr   string
			status      string
			rejected    []byte
		)
		if err := rows.Scan(&vehicleType, &periodStr, &status, &state.Input,
			&state.Malformed, &state.Accepted, &rejected, &state.Error, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partition state: %w", err)
		}

		period, err := parsePeriod(periodStr)
		if err != nil {
			return nil, err
		}
		state.Partition = trips.Partition{VehicleType: trips.VehicleType(vehicleType), Period: period}
		state.Status = PartitionStatus(status)
		if len(rejected) > 0 {
			if err := json.Unmarshal(rejected, &state.Rejected); err != nil {
				return nil, fmt.Errorf("failed to decode rejection counts: %w", err)
			}
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// FinishRun stores the summary and closes the run
func (r *Repository) FinishRun(ctx context.Context, runID string, summary *RunSummary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE pipeline_runs
		SET finished_at = $2, summary = $3
		WHERE run_id = $1
	`, runID, summary.FinishedAt, encoded)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func parsePeriod(s string) (trips.Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return trips.Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return trips.Period{Year: t.Year(), Month: t.Month()}, nil
}
