package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urbanflow/trip-demand/internal/trips"
)

// Repository handles warehouse operations for aggregation tables
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new aggregate repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ReplaceResult overwrites all three resolutions for a period in one
// transaction, so readers never observe views from different runs.
func (r *Repository) ReplaceResult(ctx context.Context, period trips.Period, result *Result) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin aggregate replace: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []*Table{result.Daily, result.Hourly, result.Hotspot} {
		if err := r.replaceTable(ctx, tx, period, table); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit aggregate replace: %w", err)
	}
	return nil
}

func (r *Repository) replaceTable(ctx context.Context, tx pgx.Tx, period trips.Period, table *Table) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM aggregation_cells WHERE resolution = $1 AND period = $2`,
		string(table.Resolution), period.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear %s cells: %w", table.Resolution, err)
	}

	cells := table.Sorted()
	rows := make([][]interface{}, 0, len(cells))
	for _, cell := range cells {
		rows = append(rows, []interface{}{
			string(table.Resolution), period.String(),
			cell.Key.Scope, cell.Key.BucketStart, string(cell.Key.Passenger),
			cell.Trips, cell.Revenue,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"aggregation_cells"},
		[]string{"resolution", "period", "scope", "bucket_start", "passenger_bucket", "trips", "revenue"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy %s cells: %w", table.Resolution, err)
	}
	return nil
}

// GetHourlySeries reads the sparse hourly cells for one scope ordered by
// time. Densification is the consumer's job; absent rows mean zero demand.
func (r *Repository) GetHourlySeries(ctx context.Context, scope int, bucket trips.PassengerBucket, from, to time.Time) ([]*Cell, error) {
	query := `
		SELECT scope, bucket_start, passenger_bucket, trips, revenue
		FROM aggregation_cells
		WHERE resolution = 'hourly' AND scope = $1 AND passenger_bucket = $2
		  AND bucket_start >= $3 AND bucket_start < $4
		ORDER BY bucket_start
	`

	rows, err := r.db.Query(ctx, query, scope, string(bucket), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly series: %w", err)
	}
	defer rows.Close()

	return scanHourlyCells(rows)
}

// scanHourlyCells drains an hourly-cells result set.
func scanHourlyCells(rows pgx.Rows) ([]*Cell, error) {
	cells := make([]*Cell, 0)
	for rows.Next() {
		cell := &Cell{}
		var passenger string
		err := rows.Scan(&cell.Key.Scope, &cell.Key.BucketStart, &passenger, &cell.Trips, &cell.Revenue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hourly cell: %w", err)
		}
		cell.Key.Passenger = trips.PassengerBucket(passenger)
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hourly cells: %w", err)
	}

	return cells, nil
}
