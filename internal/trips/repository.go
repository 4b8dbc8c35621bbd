package trips

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles warehouse operations for cleaned trip records
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new trips repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ReplaceCleaned overwrites the cleaned set for one partition. Each partition
// is recomputed wholesale per run, so the previous contents are deleted in
// the same transaction as the insert.
func (r *Repository) ReplaceCleaned(ctx context.Context, partition Partition, records []*TripRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin cleaned replace: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM cleaned_trips WHERE vehicle_type = $1 AND period = $2`,
		string(partition.VehicleType), partition.Period.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear cleaned partition: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			string(partition.VehicleType), partition.Period.String(),
			rec.PickupAt, rec.DropoffAt, rec.PickupZone, rec.DropoffZone,
			rec.Passengers, rec.DistanceMiles, rec.FareAmount,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"cleaned_trips"},
		[]string{"vehicle_type", "period", "pickup_at", "dropoff_at", "pickup_zone", "dropoff_zone", "passengers", "distance_miles", "fare_amount"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy cleaned records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cleaned replace: %w", err)
	}
	return nil
}

// GetCleaned retrieves the cleaned set for one partition
func (r *Repository) GetCleaned(ctx context.Context, partition Partition) ([]*TripRecord, error) {
	query := `
		SELECT pickup_at, dropoff_at, pickup_zone, dropoff_zone, passengers,
		       distance_miles, fare_amount
		FROM cleaned_trips
		WHERE vehicle_type = $1 AND period = $2
		ORDER BY pickup_at
	`

	rows, err := r.db.Query(ctx, query, string(partition.VehicleType), partition.Period.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get cleaned records: %w", err)
	}
	defer rows.Close()

	return scanCleanedRows(rows, partition.VehicleType)
}

// scanCleanedRows drains a cleaned-trips result set. The vehicle type is
// constant within a partition query, so it is stamped onto every record
// rather than selected.
func scanCleanedRows(rows pgx.Rows, vehicleType VehicleType) ([]*TripRecord, error) {
	records := make([]*TripRecord, 0)
	for rows.Next() {
		rec := &TripRecord{VehicleType: vehicleType}
		err := rows.Scan(
			&rec.PickupAt, &rec.DropoffAt, &rec.PickupZone, &rec.DropoffZone,
			&rec.Passengers, &rec.DistanceMiles, &rec.FareAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cleaned record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cleaned records: %w", err)
	}

	return records, nil
}

// GetCleanedForPeriod retrieves the cleaned sets of every vehicle type for a
// period, in one read, so aggregation sees a single consistent snapshot.
func (r *Repository) GetCleanedForPeriod(ctx context.Context, period Period) ([]*TripRecord, error) {
	query := `
		SELECT vehicle_type, pickup_at, dropoff_at, pickup_zone, dropoff_zone,
		       passengers, distance_miles, fare_amount
		FROM cleaned_trips
		WHERE period = $1
		ORDER BY pickup_at
	`

	rows, err := r.db.Query(ctx, query, period.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get cleaned records for period: %w", err)
	}
	defer rows.Close()

	return scanCleanedPeriodRows(rows)
}

// scanCleanedPeriodRows drains a period-wide cleaned-trips result set where
// the vehicle type varies per row.
func scanCleanedPeriodRows(rows pgx.Rows) ([]*TripRecord, error) {
	records := make([]*TripRecord, 0)
	for rows.Next() {
		rec := &TripRecord{}
		var vt string
		err := rows.Scan(
			&vt, &rec.PickupAt, &rec.DropoffAt, &rec.PickupZone, &rec.DropoffZone,
			&rec.Passengers, &rec.DistanceMiles, &rec.FareAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cleaned record: %w", err)
		}
		rec.VehicleType = VehicleType(vt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cleaned records: %w", err)
	}

	return records, nil
}
