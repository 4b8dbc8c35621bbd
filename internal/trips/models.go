package trips

import (
	"time"
)

// VehicleType identifies the for-hire-vehicle fleet a record came from
type VehicleType string

const (
	VehicleYellow VehicleType = "yellow"
	VehicleGreen  VehicleType = "green"
	VehicleFHV    VehicleType = "fhv"
	VehicleFHVHV  VehicleType = "fhvhv"
)

// AllVehicleTypes lists every recognized fleet, in partition order
var AllVehicleTypes = []VehicleType{VehicleYellow, VehicleGreen, VehicleFHV, VehicleFHVHV}

// Valid reports whether v is a recognized vehicle type
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleYellow, VehicleGreen, VehicleFHV, VehicleFHVHV:
		return true
	}
	return false
}

// PassengerBucket groups trips by party size
type PassengerBucket string

const (
	BucketSingle PassengerBucket = "single" // 1
	BucketSmall  PassengerBucket = "small"  // 2-3
	BucketMedium PassengerBucket = "medium" // 4-5
	BucketLarge  PassengerBucket = "large"  // 6+
)

// AllPassengerBuckets lists every bucket in ascending party size
var AllPassengerBuckets = []PassengerBucket{BucketSingle, BucketSmall, BucketMedium, BucketLarge}

// BucketFor maps a passenger count to its bucket. Callers must only pass
// cleaned counts (>= 1).
func BucketFor(passengers int) PassengerBucket {
	switch {
	case passengers <= 1:
		return BucketSingle
	case passengers <= 3:
		return BucketSmall
	case passengers <= 5:
		return BucketMedium
	default:
		return BucketLarge
	}
}

// Period identifies one monthly ingestion period
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Start returns the first instant of the period in UTC
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following period in UTC
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// TripRecord is the canonical trip shape every vehicle type normalizes into.
// Passengers is nil when the source layout carries no passenger count; the
// cleaner rejects such records under the null-passenger rule.
type TripRecord struct {
	PickupAt      time.Time   `json:"pickup_at" db:"pickup_at"`
	DropoffAt     time.Time   `json:"dropoff_at" db:"dropoff_at"`
	PickupZone    int         `json:"pickup_zone" db:"pickup_zone"`
	DropoffZone   int         `json:"dropoff_zone" db:"dropoff_zone"`
	Passengers    *int        `json:"passengers,omitempty" db:"passengers"`
	DistanceMiles float64     `json:"distance_miles" db:"distance_miles"`
	FareAmount    float64     `json:"fare_amount" db:"fare_amount"`
	VehicleType   VehicleType `json:"vehicle_type" db:"vehicle_type"`
}

// Duration returns the trip duration
func (t *TripRecord) Duration() time.Duration {
	return t.DropoffAt.Sub(t.PickupAt)
}

// Bucket returns the passenger bucket for a cleaned record
func (t *TripRecord) Bucket() PassengerBucket {
	if t.Passengers == nil {
		return BucketSingle
	}
	return BucketFor(*t.Passengers)
}

// Partition identifies one independent (vehicle-type, period) unit of
// normalization and cleaning work.
type Partition struct {
	VehicleType VehicleType
	Period      Period
}

// String formats the partition key
func (p Partition) String() string {
	return string(p.VehicleType) + "/" + p.Period.String()
}
