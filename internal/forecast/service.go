package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/pkg/common"
	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Service produces multi-step demand forecasts with residual-based
// confidence intervals for one scope at a time. Both regressors run per
// generation and both results are returned, tagged by model identifier.
type Service struct {
	cfg *config.ForecastConfig
}

// NewService creates a forecasting service
func NewService(cfg *config.ForecastConfig) *Service {
	return &Service{cfg: cfg}
}

// Forecast trains both models on the scope's series and produces point
// estimates with two-sided intervals for the configured horizon. A scope
// with fewer observations than the minimum yields an InsufficientDataError,
// never a degenerate numeric result.
func (s *Service) Forecast(scope aggregate.ScopeKey, series *aggregate.Series, generatedAt time.Time) ([]*Result, error) {
	n := len(series.Points)
	if n < s.cfg.MinSamples {
		return nil, common.NewInsufficientDataError(scope.String(), n, s.cfg.MinSamples)
	}

	times := make([]time.Time, n)
	demand := make([]float64, n)
	for i, p := range series.Points {
		times[i] = p.T
		demand[i] = p.Trips
	}

	holdout := s.cfg.HoldoutHours
	trainLen := n - holdout
	if trainLen-MaxLag() < 2*s.cfg.KNeighbors {
		// Not enough rows left to both train and hold out.
		return nil, common.NewInsufficientDataError(scope.String(), n, s.cfg.MinSamples)
	}

	features, targets := trainingSet(times[:trainLen], demand[:trainLen], scope.Scope)

	models := []Model{
		NewGBRT(s.cfg.Trees, s.cfg.MaxDepth, s.cfg.LearningRate),
		NewKNN(s.cfg.KNeighbors),
	}

	results := make([]*Result, 0, len(models))
	for _, model := range models {
		result, err := s.runModel(model, scope, times, demand, features, targets, trainLen, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("model %s failed for scope %s: %w", model.ID(), scope, err)
		}
		results = append(results, result)
	}

	logger.Debug("forecast generated",
		zap.String("scope", scope.String()),
		zap.Int("observations", n),
		zap.Int("horizon", s.cfg.Horizon),
	)

	return results, nil
}

func (s *Service) runModel(model Model, scope aggregate.ScopeKey, times []time.Time, demand []float64,
	features [][]float64, targets []float64, trainLen int, generatedAt time.Time) (*Result, error) {

	if err := model.Fit(features, targets); err != nil {
		return nil, err
	}

	qLo, qHi := residualQuantiles(model, features, targets, s.cfg.IntervalLevel)
	accuracy := s.evaluate(model, scope.Scope, times, demand, trainLen)
	points := s.project(model, scope.Scope, times, demand, qLo, qHi)

	return &Result{
		Scope:       scope,
		Model:       model.ID(),
		GeneratedAt: generatedAt,
		Points:      points,
		Accuracy:    accuracy,
	}, nil
}

// residualQuantiles computes the empirical quantiles of the model's
// in-sample residuals. Demand is count-like and skewed, so the interval is
// built from the observed error distribution instead of a Gaussian fit.
func residualQuantiles(model Model, features [][]float64, targets []float64, level float64) (float64, float64) {
	residuals := make([]float64, len(targets))
	for i, row := range features {
		residuals[i] = targets[i] - model.Predict(row)
	}
	sort.Float64s(residuals)

	alpha := 1 - level
	qLo := stat.Quantile(alpha/2, stat.Empirical, residuals, nil)
	qHi := stat.Quantile(1-alpha/2, stat.Empirical, residuals, nil)
	return qLo, qHi
}

// evaluate scores one-step-ahead predictions over the held-out tail using
// true lag values, the standard static evaluation for lag models.
func (s *Service) evaluate(model Model, scope int, times []time.Time, demand []float64, trainLen int) *Accuracy {
	var absSum, sqSum, pctSum float64
	var nPct, n int

	for i := trainLen; i < len(demand); i++ {
		row := featureRow(times[i], scope, demand[:i])
		pred := model.Predict(row)
		err := demand[i] - pred

		absSum += math.Abs(err)
		sqSum += err * err
		if demand[i] != 0 {
			pctSum += math.Abs(err / demand[i])
			nPct++
		}
		n++
	}
	if n == 0 {
		return nil
	}

	acc := &Accuracy{
		MAE:     absSum / float64(n),
		RMSE:    math.Sqrt(sqSum / float64(n)),
		Samples: n,
	}
	if nPct > 0 {
		acc.MAPE = pctSum / float64(nPct) * 100
	}
	return acc
}

// project rolls the model forward recursively: each step's estimate joins
// the history so deeper steps can read it as a lag.
func (s *Service) project(model Model, scope int, times []time.Time, demand []float64, qLo, qHi float64) []Point {
	step := s.stepSize()
	lastTime := times[len(times)-1]

	history := append([]float64(nil), demand...)
	points := make([]Point, 0, s.cfg.Horizon)

	for h := 1; h <= s.cfg.Horizon; h++ {
		target := lastTime.Add(time.Duration(h) * step)
		raw := model.Predict(featureRow(target, scope, history))
		history = append(history, math.Max(raw, 0))

		points = append(points, makePoint(target, raw, qLo, qHi))
	}
	return points
}

func (s *Service) stepSize() time.Duration {
	return time.Duration(s.cfg.GranularityMin) * time.Minute
}

// makePoint applies the residual offsets and clamps to the non-negative,
// lower <= estimate <= upper ordering demand forecasts must satisfy.
func makePoint(target time.Time, raw, qLo, qHi float64) Point {
	estimate := math.Max(raw, 0)
	lower := math.Max(raw+qLo, 0)
	upper := math.Max(raw+qHi, 0)

	if lower > estimate {
		lower = estimate
	}
	if upper < estimate {
		upper = estimate
	}

	return Point{TargetTime: target, Estimate: estimate, Lower: lower, Upper: upper}
}
