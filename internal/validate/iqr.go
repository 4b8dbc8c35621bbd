package validate

import (
	"sort"

	"github.com/urbanflow/trip-demand/internal/trips"
	"gonum.org/v1/gonum/stat"
)

// computeFences derives IQR fences per passenger bucket from the records that
// survived the rule filters. Fare and distance distributions differ by trip
// size, so a single partition-wide fence would over- or under-reject.
//
// Quantiles use the empirical inverse-CDF over sorted copies so the same
// input multiset always yields the same fences regardless of record order.
func computeFences(records []*trips.TripRecord, multiplier float64) map[trips.PassengerBucket]*Fences {
	distances := make(map[trips.PassengerBucket][]float64)
	fares := make(map[trips.PassengerBucket][]float64)
	for _, rec := range records {
		bucket := rec.Bucket()
		distances[bucket] = append(distances[bucket], rec.DistanceMiles)
		fares[bucket] = append(fares[bucket], rec.FareAmount)
	}

	fences := make(map[trips.PassengerBucket]*Fences, len(distances))
	for bucket, dist := range distances {
		dLo, dHi := iqrBounds(dist, multiplier)
		fLo, fHi := iqrBounds(fares[bucket], multiplier)
		fences[bucket] = &Fences{
			DistanceLower: dLo,
			DistanceUpper: dHi,
			FareLower:     fLo,
			FareUpper:     fHi,
		}
	}
	return fences
}

// iqrBounds returns [Q1 - m*IQR, Q3 + m*IQR] for values
func iqrBounds(values []float64, multiplier float64) (float64, float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1

	return q1 - multiplier*iqr, q3 + multiplier*iqr
}
