package normalize

import (
	"time"

	"github.com/urbanflow/trip-demand/internal/trips"
)

// Raw row layouts, one per vehicle type. Column names follow the source
// files; optional columns surface as pointers so absence is distinguishable
// from zero.

// YellowRow is the raw yellow-cab trip layout
type YellowRow struct {
	PickupDatetime  time.Time `parquet:"tpep_pickup_datetime"`
	DropoffDatetime time.Time `parquet:"tpep_dropoff_datetime"`
	PassengerCount  *float64  `parquet:"passenger_count,optional"`
	TripDistance    *float64  `parquet:"trip_distance,optional"`
	FareAmount      *float64  `parquet:"fare_amount,optional"`
	PULocationID    *int64    `parquet:"PULocationID,optional"`
	DOLocationID    *int64    `parquet:"DOLocationID,optional"`
}

// GreenRow is the raw green-cab trip layout
type GreenRow struct {
	PickupDatetime  time.Time `parquet:"lpep_pickup_datetime"`
	DropoffDatetime time.Time `parquet:"lpep_dropoff_datetime"`
	PassengerCount  *float64  `parquet:"passenger_count,optional"`
	TripDistance    *float64  `parquet:"trip_distance,optional"`
	FareAmount      *float64  `parquet:"fare_amount,optional"`
	PULocationID    *int64    `parquet:"PULocationID,optional"`
	DOLocationID    *int64    `parquet:"DOLocationID,optional"`
}

// FHVRow is the raw for-hire-vehicle trip layout. It carries no passenger
// count, distance, or fare.
type FHVRow struct {
	PickupDatetime  time.Time `parquet:"pickup_datetime"`
	DropoffDatetime time.Time `parquet:"dropOff_datetime"`
	PULocationID    *int64    `parquet:"PUlocationID,optional"`
	DOLocationID    *int64    `parquet:"DOlocationID,optional"`
}

// FHVHVRow is the raw high-volume for-hire trip layout. It carries distance
// and fare but no passenger count.
type FHVHVRow struct {
	PickupDatetime  time.Time `parquet:"pickup_datetime"`
	DropoffDatetime time.Time `parquet:"dropoff_datetime"`
	PULocationID    *int64    `parquet:"PULocationID,optional"`
	DOLocationID    *int64    `parquet:"DOLocationID,optional"`
	TripMiles       *float64  `parquet:"trip_miles,optional"`
	BaseFare        *float64  `parquet:"base_passenger_fare,optional"`
}

// RawBatch is one (vehicle-type, period) batch as supplied by the ingestion
// collaborator. Exactly one of the row slices is populated, selected by the
// VehicleType tag.
type RawBatch struct {
	VehicleType string // raw tag as supplied, validated during normalization
	Period      trips.Period

	Yellow []YellowRow
	Green  []GreenRow
	FHV    []FHVRow
	FHVHV  []FHVHVRow
}

// Len returns the number of raw rows in the batch
func (b *RawBatch) Len() int {
	return len(b.Yellow) + len(b.Green) + len(b.FHV) + len(b.FHVHV)
}

// Report summarizes one normalization pass
type Report struct {
	VehicleType string `json:"vehicle_type"`
	Input       int    `json:"input"`
	Normalized  int    `json:"normalized"`
	Malformed   int    `json:"malformed"` // rows missing required structure
}
