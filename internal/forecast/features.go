package forecast

import (
	"time"
)

// Lags are the demand history offsets, in steps, fed to the regressors
// alongside the calendar features: the last three steps, the same step a day
// earlier, and the same step a week earlier.
var Lags = []int{1, 2, 3, 24, 168}

// MaxLag is the deepest history offset a feature row needs
func MaxLag() int {
	max := 0
	for _, lag := range Lags {
		if lag > max {
			max = lag
		}
	}
	return max
}

// featureRow builds one model input row: calendar features for the target
// time, the scope's zone identifier, and lagged demand read from history,
// where history[i] is demand at (target - (len(history)-i) steps).
func featureRow(target time.Time, scope int, history []float64) []float64 {
	row := make([]float64, 0, 5+len(Lags))
	row = append(row,
		float64(target.Hour()),
		float64(target.Weekday()),
		float64(target.Month()),
		boolToFloat(IsHoliday(target)),
		float64(scope),
	)
	for _, lag := range Lags {
		row = append(row, history[len(history)-lag])
	}
	return row
}

// trainingSet builds the supervised matrix from a dense demand series.
// Row i targets series index MaxLag()+i, so every row has full lag depth.
func trainingSet(times []time.Time, demand []float64, scope int) ([][]float64, []float64) {
	maxLag := MaxLag()
	n := len(demand) - maxLag
	if n <= 0 {
		return nil, nil
	}

	features := make([][]float64, 0, n)
	targets := make([]float64, 0, n)
	for i := maxLag; i < len(demand); i++ {
		features = append(features, featureRow(times[i], scope, demand[:i]))
		targets = append(targets, demand[i])
	}
	return features, targets
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
