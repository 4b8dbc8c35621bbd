package normalize

import (
	"math"

	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/pkg/common"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"go.uber.org/zap"
)

// Service maps raw per-vehicle-type batches onto the canonical trip record.
// Each vehicle type has one mapping function, selected by the batch tag;
// there is no runtime column probing.
type Service struct{}

// NewService creates a new normalizer
func NewService() *Service {
	return &Service{}
}

// Normalize converts one raw batch into canonical trip records. A batch with
// an unrecognized vehicle-type tag fails with a SchemaError so the partition
// is recorded as failed rather than silently dropped. Rows missing required
// structure (absent zone IDs) are counted as malformed and skipped; absent
// passenger counts become an explicit unknown, not a default, so the cleaner
// can apply its null-passenger rule uniformly.
func (s *Service) Normalize(batch *RawBatch) ([]*trips.TripRecord, *Report, error) {
	vt := trips.VehicleType(batch.VehicleType)
	if !vt.Valid() {
		return nil, nil, common.NewSchemaError(batch.VehicleType, "unrecognized vehicle type tag", nil)
	}

	report := &Report{VehicleType: batch.VehicleType, Input: batch.Len()}
	records := make([]*trips.TripRecord, 0, batch.Len())

	appendRecord := func(rec *trips.TripRecord, ok bool) {
		if !ok {
			report.Malformed++
			return
		}
		rec.VehicleType = vt
		records = append(records, rec)
	}

	switch vt {
	case trips.VehicleYellow:
		for i := range batch.Yellow {
			appendRecord(mapYellow(&batch.Yellow[i]))
		}
	case trips.VehicleGreen:
		for i := range batch.Green {
			appendRecord(mapGreen(&batch.Green[i]))
		}
	case trips.VehicleFHV:
		for i := range batch.FHV {
			appendRecord(mapFHV(&batch.FHV[i]))
		}
	case trips.VehicleFHVHV:
		for i := range batch.FHVHV {
			appendRecord(mapFHVHV(&batch.FHVHV[i]))
		}
	}

	report.Normalized = len(records)

	logger.Info("normalized raw batch",
		zap.String("vehicle_type", batch.VehicleType),
		zap.String("period", batch.Period.String()),
		zap.Int("input", report.Input),
		zap.Int("normalized", report.Normalized),
		zap.Int("malformed", report.Malformed),
	)

	return records, report, nil
}

func mapYellow(row *YellowRow) (*trips.TripRecord, bool) {
	if row.PULocationID == nil || row.DOLocationID == nil {
		return nil, false
	}
	return &trips.TripRecord{
		PickupAt:      row.PickupDatetime,
		DropoffAt:     row.DropoffDatetime,
		PickupZone:    int(*row.PULocationID),
		DropoffZone:   int(*row.DOLocationID),
		Passengers:    passengerCount(row.PassengerCount),
		DistanceMiles: floatOrZero(row.TripDistance),
		FareAmount:    floatOrZero(row.FareAmount),
	}, true
}

func mapGreen(row *GreenRow) (*trips.TripRecord, bool) {
	if row.PULocationID == nil || row.DOLocationID == nil {
		return nil, false
	}
	return &trips.TripRecord{
		PickupAt:      row.PickupDatetime,
		DropoffAt:     row.DropoffDatetime,
		PickupZone:    int(*row.PULocationID),
		DropoffZone:   int(*row.DOLocationID),
		Passengers:    passengerCount(row.PassengerCount),
		DistanceMiles: floatOrZero(row.TripDistance),
		FareAmount:    floatOrZero(row.FareAmount),
	}, true
}

func mapFHV(row *FHVRow) (*trips.TripRecord, bool) {
	if row.PULocationID == nil || row.DOLocationID == nil {
		return nil, false
	}
	return &trips.TripRecord{
		PickupAt:    row.PickupDatetime,
		DropoffAt:   row.DropoffDatetime,
		PickupZone:  int(*row.PULocationID),
		DropoffZone: int(*row.DOLocationID),
		// No passenger count, distance, or fare in this layout. The zero
		// amounts fail the cleaner's positivity rules and are counted there.
		Passengers: nil,
	}, true
}

func mapFHVHV(row *FHVHVRow) (*trips.TripRecord, bool) {
	if row.PULocationID == nil || row.DOLocationID == nil {
		return nil, false
	}
	return &trips.TripRecord{
		PickupAt:      row.PickupDatetime,
		DropoffAt:     row.DropoffDatetime,
		PickupZone:    int(*row.PULocationID),
		DropoffZone:   int(*row.DOLocationID),
		Passengers:    nil, // layout carries no passenger count
		DistanceMiles: floatOrZero(row.TripMiles),
		FareAmount:    floatOrZero(row.BaseFare),
	}, true
}

// passengerCount converts the source's nullable float column to an explicit
// unknown (nil) or an integer count.
func passengerCount(v *float64) *int {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	n := int(*v)
	return &n
}

func floatOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}
