package validate

import (
	"time"

	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"github.com/urbanflow/trip-demand/pkg/metrics"
	"go.uber.org/zap"
)

// Service applies the cleaning rules for one (vehicle-type, period)
// partition: deterministic rule filters first, then IQR outlier rejection
// grouped by passenger bucket.
type Service struct {
	minDuration time.Duration
	maxDuration time.Duration
	iqrMult     float64
}

// NewService creates a validator from cleaning configuration
func NewService(cfg *config.CleaningConfig) *Service {
	return &Service{
		minDuration: time.Duration(cfg.MinDurationSeconds) * time.Second,
		maxDuration: time.Duration(cfg.MaxDurationSeconds) * time.Second,
		iqrMult:     cfg.IQRMultiplier,
	}
}

// Clean returns the subset of records satisfying every invariant, plus a
// rejection count per rule. Rejection is expected, never an error; records
// are accepted or rejected whole, never partially edited.
func (s *Service) Clean(partition trips.Partition, records []*trips.TripRecord) ([]*trips.TripRecord, *Report) {
	report := &Report{
		VehicleType: string(partition.VehicleType),
		Period:      partition.Period.String(),
		Input:       len(records),
		Rejected:    make(map[Rule]int),
	}

	// Fast deterministic predicates before any distribution work.
	passed := make([]*trips.TripRecord, 0, len(records))
	for _, rec := range records {
		if rule, ok := s.checkRules(rec); !ok {
			report.Rejected[rule]++
			continue
		}
		passed = append(passed, rec)
	}

	// Fences come from the rule-filtered set only; records already rejected
	// must not shift the quantiles.
	fences := computeFences(passed, s.iqrMult)

	accepted := make([]*trips.TripRecord, 0, len(passed))
	for _, rec := range passed {
		f := fences[rec.Bucket()]
		if !f.Contains(rec.DistanceMiles, rec.FareAmount) {
			report.Rejected[RuleIQROutlier]++
			continue
		}
		accepted = append(accepted, rec)
	}
	report.Accepted = len(accepted)

	metrics.RecordAccepted(report.VehicleType, report.Accepted)
	for rule, n := range report.Rejected {
		metrics.RecordRejected(report.VehicleType, string(rule), n)
	}

	logger.Info("cleaned partition",
		zap.String("partition", partition.String()),
		zap.Int("input", report.Input),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.TotalRejected()),
	)

	return accepted, report
}

// checkRules evaluates the deterministic predicates in fixed order and
// returns the first rule a record fails.
func (s *Service) checkRules(rec *trips.TripRecord) (Rule, bool) {
	if rec.Passengers == nil || *rec.Passengers < 1 {
		return RuleNullPassenger, false
	}
	if !rec.PickupAt.Before(rec.DropoffAt) {
		return RuleInvalidTimes, false
	}
	if d := rec.Duration(); d < s.minDuration || d > s.maxDuration {
		return RuleDurationBounds, false
	}
	if rec.DistanceMiles <= 0 {
		return RuleNonPositiveDist, false
	}
	if rec.FareAmount <= 0 {
		return RuleNonPositiveFare, false
	}
	return "", true
}
