package zones

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// Zone describes one geographic partition from the static enumeration
type Zone struct {
	ID          int    `json:"id"`
	Borough     string `json:"borough"`
	Name        string `json:"name"`
	ServiceZone string `json:"service_zone"`
}

// GlobalScope is the sentinel scope ID for city-wide aggregation rows
const GlobalScope = 0

// minZoneCount guards against loading a truncated lookup file; the
// enumeration is expected to carry 260+ zones.
const minZoneCount = 260

// Lookup is the read-only zone enumeration
type Lookup struct {
	byID map[int]Zone
	ids  []int
}

// Load reads the zone enumeration from a CSV file with header
// zone_id,borough,zone,service_zone.
func Load(path string) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zone lookup: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads the zone enumeration from CSV content
func Parse(r io.Reader) (*Lookup, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read zone lookup header: %w", err)
	}
	if len(header) < 4 {
		return nil, fmt.Errorf("zone lookup header has %d columns, want 4", len(header))
	}

	byID := make(map[int]Zone)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read zone lookup row: %w", err)
		}

		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("invalid zone id %q: %w", row[0], err)
		}
		if id == GlobalScope {
			return nil, fmt.Errorf("zone id %d is reserved for the global scope", GlobalScope)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate zone id %d", id)
		}

		byID[id] = Zone{ID: id, Borough: row[1], Name: row[2], ServiceZone: row[3]}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return &Lookup{byID: byID, ids: ids}, nil
}

// Validate checks the enumeration is complete enough to key aggregation on
func (l *Lookup) Validate() error {
	if len(l.byID) < minZoneCount {
		return fmt.Errorf("zone lookup has %d zones, expected at least %d", len(l.byID), minZoneCount)
	}
	return nil
}

// Get returns the zone for an ID
func (l *Lookup) Get(id int) (Zone, bool) {
	z, ok := l.byID[id]
	return z, ok
}

// Contains reports whether id is a known zone
func (l *Lookup) Contains(id int) bool {
	_, ok := l.byID[id]
	return ok
}

// IDs returns all zone IDs in ascending order
func (l *Lookup) IDs() []int {
	return l.ids
}

// Count returns the number of zones
func (l *Lookup) Count() int {
	return len(l.byID)
}
