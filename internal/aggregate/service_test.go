package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/zones"
)

func intp(v int) *int { return &v }

func testPeriod() trips.Period {
	return trips.Period{Year: 2024, Month: time.June}
}

func trip(pickup time.Time, zone, passengers int, fare float64) *trips.TripRecord {
	return &trips.TripRecord{
		PickupAt:      pickup,
		DropoffAt:     pickup.Add(12 * time.Minute),
		PickupZone:    zone,
		DropoffZone:   zone + 1,
		Passengers:    intp(passengers),
		DistanceMiles: 2.5,
		FareAmount:    fare,
		VehicleType:   trips.VehicleYellow,
	}
}

func TestAggregate_SingleHourScenario(t *testing.T) {
	svc := NewService()

	// 100 single-passenger trips in zone 42 during one hour, $12 each,
	// $1,200 total. No other hour contributes to the day.
	hour := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	records := make([]*trips.TripRecord, 0, 100)
	for i := 0; i < 100; i++ {
		records = append(records, trip(hour.Add(time.Duration(i%60)*time.Minute/2), 42, 1, 12.00))
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	dailyTrips, dailyRevenue := result.Daily.Get(Key{Scope: 42, BucketStart: day, Passenger: trips.BucketSingle})
	assert.Equal(t, int64(100), dailyTrips)
	assert.InDelta(t, 1200.00, dailyRevenue, 1e-9)

	hourlyTrips, hourlyRevenue := result.Hourly.Get(Key{Scope: 42, BucketStart: hour, Passenger: trips.BucketSingle})
	assert.Equal(t, int64(100), hourlyTrips)
	assert.InDelta(t, 1200.00, hourlyRevenue, 1e-9)

	hotspotTrips, _ := result.Hotspot.Get(Key{Scope: 42, BucketStart: day, Passenger: trips.BucketSingle})
	assert.Equal(t, int64(100), hotspotTrips)

	globalTrips, _ := result.Daily.Get(GlobalKey(day, trips.BucketSingle))
	assert.Equal(t, int64(100), globalTrips)
}

func TestAggregate_CrossResolutionConsistency(t *testing.T) {
	svc := NewService()
	rng := rand.New(rand.NewSource(3))

	records := make([]*trips.TripRecord, 0, 2000)
	for i := 0; i < 2000; i++ {
		pickup := time.Date(2024, 6, 1+rng.Intn(30), rng.Intn(24), rng.Intn(60), rng.Intn(60), 0, time.UTC)
		records = append(records, trip(pickup, 1+rng.Intn(260), 1+rng.Intn(7), 5+rng.Float64()*40))
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	// Hourly cells summed over each (scope, day, bucket) must reproduce the
	// daily cell exactly, integer counts, for every key.
	sums := make(map[Key]int64)
	for key, cell := range result.Hourly.Cells {
		day := time.Date(key.BucketStart.Year(), key.BucketStart.Month(), key.BucketStart.Day(), 0, 0, 0, 0, time.UTC)
		sums[Key{Scope: key.Scope, BucketStart: day, Passenger: key.Passenger}] += cell.Trips
	}

	require.Equal(t, len(result.Daily.Cells), len(sums))
	for key, sum := range sums {
		dailyTrips, _ := result.Daily.Get(key)
		assert.Equal(t, dailyTrips, sum, "key %+v", key)
	}
}

func TestAggregate_SparseCellsReadAsZero(t *testing.T) {
	svc := NewService()

	records := []*trips.TripRecord{
		trip(time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC), 10, 1, 15),
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	// A zone-hour with no trips is not materialized and reads as zero.
	emptyKey := Key{
		Scope:       11,
		BucketStart: time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC),
		Passenger:   trips.BucketSingle,
	}
	_, materialized := result.Hourly.Cells[emptyKey]
	assert.False(t, materialized)

	count, revenue := result.Hourly.Get(emptyKey)
	assert.Zero(t, count)
	assert.Zero(t, revenue)
}

func TestAggregate_HotspotExcludesGlobal(t *testing.T) {
	svc := NewService()

	records := []*trips.TripRecord{
		trip(time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC), 10, 1, 15),
		trip(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), 20, 2, 25),
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	for key := range result.Hotspot.Cells {
		assert.NotEqual(t, zones.GlobalScope, key.Scope, "hotspot view is per-zone only")
	}
}

func TestRankHotspots(t *testing.T) {
	svc := NewService()

	day := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	records := make([]*trips.TripRecord, 0)
	addTrips := func(zone, n int) {
		for i := 0; i < n; i++ {
			records = append(records, trip(day.Add(time.Duration(8+i%10)*time.Hour), zone, 1+i%3, 10))
		}
	}
	addTrips(7, 50)
	addTrips(3, 30)
	addTrips(9, 20)

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	ranks := svc.RankHotspots(result, day, 2)
	require.Len(t, ranks, 2)

	assert.Equal(t, 7, ranks[0].ZoneID)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, int64(50), ranks[0].Trips)
	assert.InDelta(t, 50.0, ranks[0].TripPct, 1e-9)

	assert.Equal(t, 3, ranks[1].ZoneID)
	assert.Equal(t, 2, ranks[1].Rank)
}

func TestBuildSeries_ZeroFillsGaps(t *testing.T) {
	svc := NewService()

	h0 := time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)
	records := []*trips.TripRecord{
		trip(h0, 10, 1, 15),
		trip(h0.Add(2*time.Hour), 10, 1, 20),
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	series := BuildSeries(result.Hourly, 10, trips.BucketSingle, h0, h0.Add(3*time.Hour), time.Hour)
	require.Len(t, series.Points, 3)

	assert.Equal(t, 1.0, series.Points[0].Trips)
	assert.Equal(t, 0.0, series.Points[1].Trips, "gap hour must read as zero demand")
	assert.Equal(t, 1.0, series.Points[2].Trips)
	assert.Equal(t, 20.0, series.Points[2].Revenue)
}

func TestActiveScopes(t *testing.T) {
	svc := NewService()

	records := []*trips.TripRecord{
		trip(time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC), 10, 1, 15),
		trip(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), 10, 4, 30),
	}

	result, err := svc.Aggregate(testPeriod(), records)
	require.NoError(t, err)

	scopes := svc.ActiveScopes(result)
	assert.Contains(t, scopes, ScopeKey{Scope: 10, Passenger: trips.BucketSingle})
	assert.Contains(t, scopes, ScopeKey{Scope: 10, Passenger: trips.BucketMedium})
	assert.Contains(t, scopes, ScopeKey{Scope: zones.GlobalScope, Passenger: trips.BucketSingle})
	assert.Len(t, scopes, 4)
}
