package aggregate

import (
	"sort"
	"time"

	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/zones"
)

// Resolution identifies one of the three aggregation views
type Resolution string

const (
	ResolutionDaily   Resolution = "daily"
	ResolutionHourly  Resolution = "hourly"
	ResolutionHotspot Resolution = "hotspot"
)

// Key addresses one aggregation cell. Scope is a zone ID, or
// zones.GlobalScope for the city-wide rollup.
type Key struct {
	Scope       int
	BucketStart time.Time
	Passenger   trips.PassengerBucket
}

// Cell is one sparse aggregation row: a key with its measures. Cells with
// zero trips are never materialized; consumers must read absence as zero.
type Cell struct {
	Key     Key     `json:"key"`
	Trips   int64   `json:"trips"`
	Revenue float64 `json:"revenue"`
}

// Table is one resolution's complete sparse view for a period
type Table struct {
	Resolution Resolution
	Period     trips.Period
	Cells      map[Key]*Cell
}

// NewTable creates an empty table
func NewTable(resolution Resolution, period trips.Period) *Table {
	return &Table{Resolution: resolution, Period: period, Cells: make(map[Key]*Cell)}
}

// Add accumulates one trip into the cell for key
func (t *Table) Add(key Key, fare float64) {
	cell, ok := t.Cells[key]
	if !ok {
		cell = &Cell{Key: key}
		t.Cells[key] = cell
	}
	cell.Trips++
	cell.Revenue += fare
}

// Get returns the cell for key; absent cells read as zero
func (t *Table) Get(key Key) (trips int64, revenue float64) {
	if cell, ok := t.Cells[key]; ok {
		return cell.Trips, cell.Revenue
	}
	return 0, 0
}

// Sorted returns the cells in deterministic (scope, time, bucket) order
func (t *Table) Sorted() []*Cell {
	cells := make([]*Cell, 0, len(t.Cells))
	for _, cell := range t.Cells {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i].Key, cells[j].Key
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		if !a.BucketStart.Equal(b.BucketStart) {
			return a.BucketStart.Before(b.BucketStart)
		}
		return a.Passenger < b.Passenger
	})
	return cells
}

// Result bundles the three views produced from one cleaned set
type Result struct {
	Daily   *Table
	Hourly  *Table
	Hotspot *Table
}

// HotspotRank is one zone's position in a day's demand ranking
type HotspotRank struct {
	Day      time.Time `json:"day"`
	ZoneID   int       `json:"zone_id"`
	Rank     int       `json:"rank"`
	Trips    int64     `json:"trips"`
	Revenue  float64   `json:"revenue"`
	TripPct  float64   `json:"trip_pct"` // share of the day's city-wide trips
}

// SeriesPoint is one observation of a zone time series
type SeriesPoint struct {
	T       time.Time `json:"t"`
	Trips   float64   `json:"trips"`
	Revenue float64   `json:"revenue"`
}

// Series is a dense, zero-filled, time-ordered view over one
// (scope, passenger-bucket) pair, the input shape for the analytics engines.
type Series struct {
	Scope     int
	Passenger trips.PassengerBucket
	Step      time.Duration
	Points    []SeriesPoint
}

// BuildSeries assembles a dense series from a sparse table by filling every
// step in [from, to) and reading absent cells as zero.
func BuildSeries(table *Table, scope int, bucket trips.PassengerBucket, from, to time.Time, step time.Duration) *Series {
	series := &Series{Scope: scope, Passenger: bucket, Step: step}
	for t := from; t.Before(to); t = t.Add(step) {
		count, revenue := table.Get(Key{Scope: scope, BucketStart: t, Passenger: bucket})
		series.Points = append(series.Points, SeriesPoint{T: t, Trips: float64(count), Revenue: revenue})
	}
	return series
}

// GlobalKey returns the city-wide key for a time bucket
func GlobalKey(bucketStart time.Time, passenger trips.PassengerBucket) Key {
	return Key{Scope: zones.GlobalScope, BucketStart: bucketStart, Passenger: passenger}
}
