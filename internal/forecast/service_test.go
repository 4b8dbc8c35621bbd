package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/internal/trips"
	"github.com/urbanflow/trip-demand/pkg/common"
	"github.com/urbanflow/trip-demand/pkg/config"
)

func testConfig() *config.ForecastConfig {
	return &config.ForecastConfig{
		Horizon:        15,
		GranularityMin: 60,
		MinSamples:     336,
		IntervalLevel:  0.90,
		Trees:          30,
		MaxDepth:       3,
		LearningRate:   0.1,
		KNeighbors:     5,
		HoldoutHours:   48,
	}
}

func testScope() aggregate.ScopeKey {
	return aggregate.ScopeKey{Scope: 42, Passenger: trips.BucketSingle}
}

// syntheticSeries builds n hourly observations with daily and weekly shape:
// busy daytime hours, quieter weekends, no randomness.
func syntheticSeries(n int) *aggregate.Series {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	series := &aggregate.Series{Scope: 42, Passenger: trips.BucketSingle, Step: time.Hour}

	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		demand := 20.0 + 15.0*math.Sin(2*math.Pi*float64(ts.Hour())/24)
		if ts.Hour() >= 8 && ts.Hour() <= 19 {
			demand += 30
		}
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			demand *= 0.6
		}
		series.Points = append(series.Points, aggregate.SeriesPoint{T: ts, Trips: math.Round(demand), Revenue: demand * 14})
	}
	return series
}

func TestForecast_InsufficientHistory(t *testing.T) {
	svc := NewService(testConfig())

	_, err := svc.Forecast(testScope(), syntheticSeries(100), time.Now())
	require.Error(t, err)

	assert.ErrorIs(t, err, common.ErrInsufficientData)

	var insufficientErr *common.InsufficientDataError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, 100, insufficientErr.Observed)
	assert.Equal(t, 336, insufficientErr.Required)
}

func TestForecast_BothModelsProduced(t *testing.T) {
	svc := NewService(testConfig())

	results, err := svc.Forecast(testScope(), syntheticSeries(600), time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := map[ModelID]bool{}
	for _, r := range results {
		ids[r.Model] = true
	}
	assert.True(t, ids[ModelGBRT])
	assert.True(t, ids[ModelKNN])
}

func TestForecast_HorizonAndIntervalInvariants(t *testing.T) {
	cfg := testConfig()
	svc := NewService(cfg)

	series := syntheticSeries(600)
	lastObserved := series.Points[len(series.Points)-1].T

	results, err := svc.Forecast(testScope(), series, time.Now())
	require.NoError(t, err)

	for _, result := range results {
		require.Len(t, result.Points, cfg.Horizon, "model %s", result.Model)

		for i, p := range result.Points {
			expected := lastObserved.Add(time.Duration(i+1) * time.Hour)
			assert.Equal(t, expected, p.TargetTime)

			assert.LessOrEqual(t, p.Lower, p.Estimate, "model %s step %d", result.Model, i+1)
			assert.LessOrEqual(t, p.Estimate, p.Upper, "model %s step %d", result.Model, i+1)
			assert.GreaterOrEqual(t, p.Lower, 0.0)
		}
	}
}

func TestForecast_AccuracyOnHoldout(t *testing.T) {
	cfg := testConfig()
	svc := NewService(cfg)

	results, err := svc.Forecast(testScope(), syntheticSeries(600), time.Now())
	require.NoError(t, err)

	for _, result := range results {
		require.NotNil(t, result.Accuracy, "model %s", result.Model)
		assert.Equal(t, cfg.HoldoutHours, result.Accuracy.Samples)
		assert.GreaterOrEqual(t, result.Accuracy.MAE, 0.0)
		assert.GreaterOrEqual(t, result.Accuracy.RMSE, result.Accuracy.MAE)
	}
}

func TestForecast_GBRTLearnsCalendarShape(t *testing.T) {
	svc := NewService(testConfig())

	results, err := svc.Forecast(testScope(), syntheticSeries(800), time.Now())
	require.NoError(t, err)

	var gbrt *Result
	for _, r := range results {
		if r.Model == ModelGBRT {
			gbrt = r
		}
	}
	require.NotNil(t, gbrt)

	// The series is deterministic with strong calendar structure; the
	// boosted trees should track it closely on the holdout.
	assert.Less(t, gbrt.Accuracy.MAE, 6.0)
}

func TestMakePoint_ClampsOrdering(t *testing.T) {
	tests := []struct {
		name        string
		raw, lo, hi float64
	}{
		{"typical", 50, -8, 12},
		{"negative raw estimate", -3, -5, 4},
		{"inverted offsets", 10, 5, -5},
		{"all negative", -10, -2, -1},
	}

	target := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := makePoint(target, tt.raw, tt.lo, tt.hi)
			assert.LessOrEqual(t, p.Lower, p.Estimate)
			assert.LessOrEqual(t, p.Estimate, p.Upper)
			assert.GreaterOrEqual(t, p.Lower, 0.0)
		})
	}
}

func TestTrainingSet_LagAlignment(t *testing.T) {
	n := MaxLag() + 3
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	times := make([]time.Time, n)
	demand := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = start.Add(time.Duration(i) * time.Hour)
		demand[i] = float64(i)
	}

	features, targets := trainingSet(times, demand, 7)
	require.Len(t, targets, 3)
	require.Len(t, features, 3)

	// First row targets index MaxLag(); its lag-1 feature is the previous
	// value and its deepest lag reads index 0.
	assert.Equal(t, float64(MaxLag()), targets[0])
	row := features[0]
	// Layout: hour, weekday, month, holiday, zone, then lags in order.
	assert.Equal(t, 7.0, row[4])
	assert.Equal(t, float64(MaxLag()-1), row[5], "lag 1")
	assert.Equal(t, 0.0, row[len(row)-1], "lag 168")
}
