package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/zones"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"go.uber.org/zap"
)

// Service produces the three aggregation views for a period. All three are
// derived in a single pass over one cleaned snapshot, which is what makes
// the cross-resolution consistency check an algebraic guarantee rather than
// a hope about storage timing.
type Service struct{}

// NewService creates a new aggregator
func NewService() *Service {
	return &Service{}
}

// Aggregate builds daily, hourly, and hotspot views from one period's
// cleaned records and verifies cross-resolution consistency before
// returning. Pickup time and pickup zone are the canonical dimensions.
func (s *Service) Aggregate(period trips.Period, cleaned []*trips.TripRecord) (*Result, error) {
	result := &Result{
		Daily:   NewTable(ResolutionDaily, period),
		Hourly:  NewTable(ResolutionHourly, period),
		Hotspot: NewTable(ResolutionHotspot, period),
	}

	for _, rec := range cleaned {
		bucket := rec.Bucket()
		hour := rec.PickupAt.UTC().Truncate(time.Hour)
		day := dayOf(hour)

		// Per-zone and city-wide cells at daily and hourly grain.
		result.Hourly.Add(Key{Scope: rec.PickupZone, BucketStart: hour, Passenger: bucket}, rec.FareAmount)
		result.Hourly.Add(GlobalKey(hour, bucket), rec.FareAmount)
		result.Daily.Add(Key{Scope: rec.PickupZone, BucketStart: day, Passenger: bucket}, rec.FareAmount)
		result.Daily.Add(GlobalKey(day, bucket), rec.FareAmount)

		// Hotspot view is daily grain keyed by pickup zone only.
		result.Hotspot.Add(Key{Scope: rec.PickupZone, BucketStart: day, Passenger: bucket}, rec.FareAmount)
	}

	if err := s.checkConsistency(result); err != nil {
		return nil, err
	}

	logger.Info("aggregated period",
		zap.String("period", period.String()),
		zap.Int("records", len(cleaned)),
		zap.Int("daily_cells", len(result.Daily.Cells)),
		zap.Int("hourly_cells", len(result.Hourly.Cells)),
		zap.Int("hotspot_cells", len(result.Hotspot.Cells)),
	)

	return result, nil
}

// checkConsistency verifies that summing hourly cells over each
// (scope, day, bucket) reproduces the daily cell exactly. A violation means
// the two views were not derived from the same snapshot and the run must
// not publish them.
func (s *Service) checkConsistency(result *Result) error {
	sums := make(map[Key]int64, len(result.Daily.Cells))
	for key, cell := range result.Hourly.Cells {
		dayKey := Key{Scope: key.Scope, BucketStart: dayOf(key.BucketStart), Passenger: key.Passenger}
		sums[dayKey] += cell.Trips
	}

	if len(sums) != len(result.Daily.Cells) {
		return fmt.Errorf("resolution mismatch: %d hourly day-groups vs %d daily cells", len(sums), len(result.Daily.Cells))
	}
	for key, sum := range sums {
		daily, _ := result.Daily.Get(key)
		if daily != sum {
			return fmt.Errorf("inconsistent aggregation for scope=%d day=%s bucket=%s: hourly sum %d, daily %d",
				key.Scope, key.BucketStart.Format("2006-01-02"), key.Passenger, sum, daily)
		}
	}
	return nil
}

// RankHotspots returns the top-N pickup zones for a day by trip count,
// summed across passenger buckets, with each zone's share of the day's
// city-wide trips.
func (s *Service) RankHotspots(result *Result, day time.Time, topN int) []*HotspotRank {
	day = dayOf(day.UTC())

	type zoneAgg struct {
		trips   int64
		revenue float64
	}
	perZone := make(map[int]*zoneAgg)
	var cityTotal int64

	for key, cell := range result.Hotspot.Cells {
		if !key.BucketStart.Equal(day) {
			continue
		}
		agg, ok := perZone[key.Scope]
		if !ok {
			agg = &zoneAgg{}
			perZone[key.Scope] = agg
		}
		agg.trips += cell.Trips
		agg.revenue += cell.Revenue
		cityTotal += cell.Trips
	}

	ranks := make([]*HotspotRank, 0, len(perZone))
	for zoneID, agg := range perZone {
		ranks = append(ranks, &HotspotRank{
			Day:     day,
			ZoneID:  zoneID,
			Trips:   agg.trips,
			Revenue: agg.revenue,
		})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Trips != ranks[j].Trips {
			return ranks[i].Trips > ranks[j].Trips
		}
		return ranks[i].ZoneID < ranks[j].ZoneID // stable order for ties
	})

	if topN > 0 && len(ranks) > topN {
		ranks = ranks[:topN]
	}
	for i, r := range ranks {
		r.Rank = i + 1
		if cityTotal > 0 {
			r.TripPct = float64(r.Trips) / float64(cityTotal) * 100
		}
	}
	return ranks
}

// ActiveScopes returns every (zone, bucket) pair with at least one hourly
// cell, plus the global scope pairs, for downstream per-scope fan-out.
func (s *Service) ActiveScopes(result *Result) []ScopeKey {
	seen := make(map[ScopeKey]bool)
	for key := range result.Hourly.Cells {
		seen[ScopeKey{Scope: key.Scope, Passenger: key.Passenger}] = true
	}

	scopes := make([]ScopeKey, 0, len(seen))
	for sk := range seen {
		scopes = append(scopes, sk)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Scope != scopes[j].Scope {
			return scopes[i].Scope < scopes[j].Scope
		}
		return scopes[i].Passenger < scopes[j].Passenger
	})
	return scopes
}

// ScopeKey identifies one (zone-or-global, passenger-bucket) analytics scope
type ScopeKey struct {
	Scope     int
	Passenger trips.PassengerBucket
}

// String formats the scope key for run summaries and cache keys
func (k ScopeKey) String() string {
	if k.Scope == zones.GlobalScope {
		return fmt.Sprintf("global/%s", k.Passenger)
	}
	return fmt.Sprintf("zone-%d/%s", k.Scope, k.Passenger)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
