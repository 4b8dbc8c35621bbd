package validate

// Rule identifies which validation rule rejected a record
type Rule string

const (
	RuleNullPassenger   Rule = "null_passenger"
	RuleInvalidTimes    Rule = "inverted_or_zero_duration"
	RuleDurationBounds  Rule = "duration_out_of_range"
	RuleNonPositiveDist Rule = "non_positive_distance"
	RuleNonPositiveFare Rule = "non_positive_fare"
	RuleIQROutlier      Rule = "iqr_outlier"
)

// AllRules lists every rejection rule in evaluation order
var AllRules = []Rule{
	RuleNullPassenger,
	RuleInvalidTimes,
	RuleDurationBounds,
	RuleNonPositiveDist,
	RuleNonPositiveFare,
	RuleIQROutlier,
}

// Report summarizes one cleaning pass over a partition
type Report struct {
	VehicleType string       `json:"vehicle_type"`
	Period      string       `json:"period"`
	Input       int          `json:"input"`
	Accepted    int          `json:"accepted"`
	Rejected    map[Rule]int `json:"rejected"`
}

// TotalRejected returns the number of rejected records across all rules
func (r *Report) TotalRejected() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Fences holds the acceptance bounds for one (passenger-bucket) group within
// a partition. Records outside either pair are IQR outliers.
type Fences struct {
	DistanceLower float64 `json:"distance_lower"`
	DistanceUpper float64 `json:"distance_upper"`
	FareLower     float64 `json:"fare_lower"`
	FareUpper     float64 `json:"fare_upper"`
}

// Contains reports whether a (distance, fare) pair lies within the fences
func (f *Fences) Contains(distance, fare float64) bool {
	return distance >= f.DistanceLower && distance <= f.DistanceUpper &&
		fare >= f.FareLower && fare <= f.FareUpper
}
