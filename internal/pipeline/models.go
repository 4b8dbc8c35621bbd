package pipeline

import (
	"time"

	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/internal/validate"
)

// PartitionStatus tracks one (vehicle-type, period) cleaning partition
// through a run. The aggregation barrier reads these states.
type PartitionStatus string

const (
	StatusPending   PartitionStatus = "pending"
	StatusRunning   PartitionStatus = "running"
	StatusCompleted PartitionStatus = "completed"
	StatusFailed    PartitionStatus = "failed"
)

// ScopeOutcome is the per-scope result of a forecast or anomaly stage.
type ScopeOutcome string

const (
	OutcomeCompleted        ScopeOutcome = "completed"
	OutcomeInsufficientData ScopeOutcome = "insufficient_data"
	OutcomeFailed           ScopeOutcome = "failed"
)

// PartitionState is the persisted state of one cleaning partition.
type PartitionState struct {
	Partition trips.Partition       `json:"partition"`
	Status    PartitionStatus       `json:"status"`
	Input     int                   `json:"input"`
	Malformed int                   `json:"malformed"`
	Accepted  int                   `json:"accepted"`
	Rejected  map[validate.Rule]int `json:"rejected,omitempty"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ScopeSummary records what each (zone, passenger-bucket) scope produced.
type ScopeSummary struct {
	Scope    string       `json:"scope"`
	Forecast ScopeOutcome `json:"forecast"`
	Anomaly  ScopeOutcome `json:"anomaly"`
	Detail   string       `json:"detail,omitempty"`
}

// RunSummary enumerates everything a run attempted. A partition or scope
// that was attempted always appears here, whatever its outcome.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	Period     trips.Period      `json:"period"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Partitions []*PartitionState `json:"partitions"`
	Scopes     []*ScopeSummary   `json:"scopes,omitempty"`
	Fatal      string            `json:"fatal,omitempty"`
}

// CompletedPartitions counts partitions that finished cleaning.
func (s *RunSummary) CompletedPartitions() int {
	n := 0
	for _, p := range s.Partitions {
		if p.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// TotalAccepted sums accepted records across partitions.
func (s *RunSummary) TotalAccepted() int {
	n := 0
	for _, p := range s.Partitions {
		n += p.Accepted
	}
	return n
}
