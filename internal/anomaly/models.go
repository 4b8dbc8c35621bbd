package anomaly

import (
	"time"

	"github.com/urbanflow/trip-demand/internal/aggregate"
)

// Record is one time-bucket's anomaly verdict for a scope
type Record struct {
	Scope     aggregate.ScopeKey `json:"scope"`
	Day       time.Time          `json:"day"`
	Error     float64            `json:"reconstruction_error"`
	Flagged   bool               `json:"flagged"`
	Threshold float64            `json:"threshold"`
}

// Detection is one run's output for a scope. Threshold and training size
// are carried so the decision boundary can be audited without retraining.
type Detection struct {
	Scope       aggregate.ScopeKey `json:"scope"`
	GeneratedAt time.Time          `json:"generated_at"`
	Threshold   float64            `json:"threshold"`
	Percentile  float64            `json:"percentile"`
	TrainedDays int                `json:"trained_days"`
	Records     []*Record          `json:"records"`
}

// Flags returns only the flagged records
func (d *Detection) Flags() []*Record {
	flagged := make([]*Record, 0)
	for _, r := range d.Records {
		if r.Flagged {
			flagged = append(flagged, r)
		}
	}
	return flagged
}
