package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/pkg/common"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func testPeriod() trips.Period {
	return trips.Period{Year: 2024, Month: time.June}
}

func TestNormalize_Yellow(t *testing.T) {
	svc := NewService()

	pickup := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	batch := &RawBatch{
		VehicleType: "yellow",
		Period:      testPeriod(),
		Yellow: []YellowRow{
			{
				PickupDatetime:  pickup,
				DropoffDatetime: pickup.Add(20 * time.Minute),
				PassengerCount:  f64(2),
				TripDistance:    f64(3.4),
				FareAmount:      f64(18.50),
				PULocationID:    i64(142),
				DOLocationID:    i64(236),
			},
		},
	}

	records, report, err := svc.Normalize(batch)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, trips.VehicleYellow, rec.VehicleType)
	assert.Equal(t, 142, rec.PickupZone)
	assert.Equal(t, 236, rec.DropoffZone)
	require.NotNil(t, rec.Passengers)
	assert.Equal(t, 2, *rec.Passengers)
	assert.Equal(t, 3.4, rec.DistanceMiles)
	assert.Equal(t, 18.50, rec.FareAmount)

	assert.Equal(t, 1, report.Input)
	assert.Equal(t, 1, report.Normalized)
	assert.Equal(t, 0, report.Malformed)
}

func TestNormalize_NullPassengerCountStaysUnknown(t *testing.T) {
	svc := NewService()

	batch := &RawBatch{
		VehicleType: "yellow",
		Period:      testPeriod(),
		Yellow: []YellowRow{
			{
				PickupDatetime:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
				DropoffDatetime: time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC),
				PassengerCount:  nil,
				TripDistance:    f64(1.1),
				FareAmount:      f64(8),
				PULocationID:    i64(1),
				DOLocationID:    i64(2),
			},
		},
	}

	records, _, err := svc.Normalize(batch)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Passengers, "absent passenger count must stay unknown, not default")
}

func TestNormalize_FHVHasNoPassengerCount(t *testing.T) {
	svc := NewService()

	batch := &RawBatch{
		VehicleType: "fhv",
		Period:      testPeriod(),
		FHV: []FHVRow{
			{
				PickupDatetime:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
				DropoffDatetime: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
				PULocationID:    i64(7),
				DOLocationID:    i64(9),
			},
		},
	}

	records, report, err := svc.Normalize(batch)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Passengers)
	assert.Zero(t, records[0].DistanceMiles)
	assert.Zero(t, records[0].FareAmount)
	assert.Equal(t, 1, report.Normalized)
}

func TestNormalize_FHVHVCarriesDistanceAndFare(t *testing.T) {
	svc := NewService()

	batch := &RawBatch{
		VehicleType: "fhvhv",
		Period:      testPeriod(),
		FHVHV: []FHVHVRow{
			{
				PickupDatetime:  time.Date(2024, 6, 2, 18, 0, 0, 0, time.UTC),
				DropoffDatetime: time.Date(2024, 6, 2, 18, 22, 0, 0, time.UTC),
				PULocationID:    i64(61),
				DOLocationID:    i64(65),
				TripMiles:       f64(5.2),
				BaseFare:        f64(21.75),
			},
		},
	}

	records, _, err := svc.Normalize(batch)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5.2, records[0].DistanceMiles)
	assert.Equal(t, 21.75, records[0].FareAmount)
	assert.Nil(t, records[0].Passengers)
}

func TestNormalize_MalformedRowsCountedNotDropped(t *testing.T) {
	svc := NewService()

	batch := &RawBatch{
		VehicleType: "green",
		Period:      testPeriod(),
		Green: []GreenRow{
			{ // missing zone IDs
				PickupDatetime:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
				DropoffDatetime: time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC),
				PassengerCount:  f64(1),
			},
			{
				PickupDatetime:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
				DropoffDatetime: time.Date(2024, 6, 1, 10, 15, 0, 0, time.UTC),
				PassengerCount:  f64(1),
				TripDistance:    f64(2),
				FareAmount:      f64(11),
				PULocationID:    i64(33),
				DOLocationID:    i64(34),
			},
		},
	}

	records, report, err := svc.Normalize(batch)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, report.Input)
	assert.Equal(t, 1, report.Normalized)
	assert.Equal(t, 1, report.Malformed)
}

func TestNormalize_UnrecognizedVehicleTypeFailsPartition(t *testing.T) {
	svc := NewService()

	batch := &RawBatch{VehicleType: "limo", Period: testPeriod()}

	records, report, err := svc.Normalize(batch)
	assert.Nil(t, records)
	assert.Nil(t, report)
	require.Error(t, err)

	var schemaErr *common.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "limo", schemaErr.VehicleType)
}
