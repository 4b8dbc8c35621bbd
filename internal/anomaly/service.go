package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/urbanflow/trip-demand/internal/aggregate"
	"github.com/urbanflow/trip-demand/internal/forecast"
	"github.com/urbanflow/trip-demand/pkg/common"
	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// hoursPerDay is the day-profile width; each scored time-bucket is one day
// of hourly demand.
const hoursPerDay = 24

// inputWidth is the detector's feature vector: hourly trip counts, hourly
// revenues, day-of-week one-hot, holiday flag.
const inputWidth = hoursPerDay*2 + 7 + 1

// scoringFolds partitions the reference days for threshold derivation. Each
// day's error comes from a network that never saw that day, so a network
// that fits its training days exactly cannot collapse the error
// distribution.
const scoringFolds = 5

// minThreshold floors the decision boundary. Inputs are standardized, so
// reconstruction errors below this are fitting noise, not demand signal.
const minThreshold = 1e-3

// Detector is a trained scope model: the autoencoder, the standardization
// it was trained under, and the threshold derived from out-of-fold
// reconstruction errors on the reference days.
type Detector struct {
	ae          *Autoencoder
	means       []float64
	stds        []float64
	threshold   float64
	percentile  float64
	trainedDays int
}

// Threshold returns the decision boundary derived at training time
func (d *Detector) Threshold() float64 { return d.threshold }

// Score returns the reconstruction error for one standardized day vector
func (d *Detector) Score(vec []float64) float64 {
	return d.ae.ReconstructionError(d.standardize(vec))
}

func (d *Detector) standardize(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i := range vec {
		out[i] = (vec[i] - d.means[i]) / d.stds[i]
	}
	return out
}

// Service flags anomalous demand periods by reconstruction error. One
// detector is trained per scope; the flag decision is purely
// error-versus-threshold, never rule-based.
type Service struct {
	cfg *config.AnomalyConfig
}

// NewService creates an anomaly detection service
func NewService(cfg *config.AnomalyConfig) *Service {
	return &Service{cfg: cfg}
}

// Detect trains a detector on the scope's series and scores every complete
// day in it. Reference days are scored out-of-fold and the threshold is the
// configured percentile of those errors, so it adapts to each scope's
// demand scale.
func (s *Service) Detect(scope aggregate.ScopeKey, series *aggregate.Series, generatedAt time.Time) (*Detection, error) {
	detector, days, scores, err := s.Train(scope, series)
	if err != nil {
		return nil, err
	}
	return s.buildDetection(detector, scope, days, scores, generatedAt), nil
}

// DetectWith scores a series against an already-trained detector, keeping
// its threshold. This is how a reference-period boundary is applied to
// later periods.
func (s *Service) DetectWith(detector *Detector, scope aggregate.ScopeKey, series *aggregate.Series, generatedAt time.Time) (*Detection, error) {
	days, vectors, err := dayVectors(series)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, common.NewInsufficientDataError(scope.String(), 0, 1)
	}

	scores := make([]float64, len(vectors))
	for i, vec := range vectors {
		scores[i] = detector.Score(vec)
	}
	return s.buildDetection(detector, scope, days, scores, generatedAt), nil
}

// Train fits a detector on the series' complete days. The threshold comes
// from out-of-fold reconstruction errors: every reference day is scored by
// a network trained without it. The detector kept for scoring later periods
// is fit on all reference days.
func (s *Service) Train(scope aggregate.ScopeKey, series *aggregate.Series) (*Detector, []time.Time, []float64, error) {
	days, vectors, err := dayVectors(series)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(vectors) < s.cfg.MinSamples {
		return nil, nil, nil, common.NewInsufficientDataError(scope.String(), len(vectors), s.cfg.MinSamples)
	}

	means, stds := standardization(vectors)
	detector := &Detector{
		means:       means,
		stds:        stds,
		percentile:  s.cfg.ThresholdPercentile,
		trainedDays: len(vectors),
	}

	standardized := make([][]float64, len(vectors))
	for i, v := range vectors {
		standardized[i] = detector.standardize(v)
	}

	scores, err := s.foldScores(standardized)
	if err != nil {
		return nil, nil, nil, err
	}

	detector.ae, err = NewAutoencoder(inputWidth, s.cfg.Seed)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := detector.ae.Train(standardized, s.cfg.Epochs, s.cfg.BatchSize, s.cfg.LearningRate); err != nil {
		return nil, nil, nil, err
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	detector.threshold = stat.Quantile(s.cfg.ThresholdPercentile, stat.Empirical, sorted, nil)
	if detector.threshold < minThreshold {
		detector.threshold = minThreshold
	}

	logger.Debug("anomaly detector trained",
		zap.String("scope", scope.String()),
		zap.Int("days", len(vectors)),
		zap.Float64("threshold", detector.threshold),
	)

	return detector, days, scores, nil
}

// foldScores returns each standardized day's reconstruction error under a
// network trained on the other folds.
func (s *Service) foldScores(standardized [][]float64) ([]float64, error) {
	folds := scoringFolds
	if len(standardized) < folds {
		folds = len(standardized)
	}

	scores := make([]float64, len(standardized))
	for fold := 0; fold < folds; fold++ {
		train := make([][]float64, 0, len(standardized))
		for i, vec := range standardized {
			if i%folds != fold {
				train = append(train, vec)
			}
		}

		ae, err := NewAutoencoder(inputWidth, s.cfg.Seed+int64(fold)+1)
		if err != nil {
			return nil, err
		}
		if err := ae.Train(train, s.cfg.Epochs, s.cfg.BatchSize, s.cfg.LearningRate); err != nil {
			return nil, err
		}

		for i := fold; i < len(standardized); i += folds {
			scores[i] = ae.ReconstructionError(standardized[i])
		}
	}
	return scores, nil
}

// buildDetection flags every day whose error meets or exceeds the
// threshold. The boundary is inclusive: error == threshold is anomalous.
func (s *Service) buildDetection(detector *Detector, scope aggregate.ScopeKey, days []time.Time, scores []float64, generatedAt time.Time) *Detection {
	detection := &Detection{
		Scope:       scope,
		GeneratedAt: generatedAt,
		Threshold:   detector.threshold,
		Percentile:  detector.percentile,
		TrainedDays: detector.trainedDays,
	}

	for i, recErr := range scores {
		detection.Records = append(detection.Records, &Record{
			Scope:     scope,
			Day:       days[i],
			Error:     recErr,
			Flagged:   recErr >= detector.threshold,
			Threshold: detector.threshold,
		})
	}
	return detection
}

// dayVectors folds an hourly series into one feature vector per complete
// day. Partial days at either end are dropped; a gap inside a day would
// have been zero-filled by the series builder, not omitted.
func dayVectors(series *aggregate.Series) ([]time.Time, [][]float64, error) {
	if series.Step != time.Hour {
		return nil, nil, fmt.Errorf("anomaly detection requires an hourly series, got step %s", series.Step)
	}

	var days []time.Time
	var vectors [][]float64

	for start := 0; start+hoursPerDay <= len(series.Points); {
		if series.Points[start].T.Hour() != 0 {
			start++
			continue
		}

		day := series.Points[start].T
		vec := make([]float64, 0, inputWidth)
		for i := 0; i < hoursPerDay; i++ {
			vec = append(vec, series.Points[start+i].Trips)
		}
		for i := 0; i < hoursPerDay; i++ {
			vec = append(vec, series.Points[start+i].Revenue)
		}

		dow := make([]float64, 7)
		dow[int(day.Weekday())] = 1
		vec = append(vec, dow...)

		holiday := 0.0
		if forecast.IsHoliday(day) {
			holiday = 1
		}
		vec = append(vec, holiday)

		days = append(days, day)
		vectors = append(vectors, vec)
		start += hoursPerDay
	}

	return days, vectors, nil
}

// standardization computes per-dimension z-score parameters over vectors
func standardization(vectors [][]float64) ([]float64, []float64) {
	dims := len(vectors[0])
	means := make([]float64, dims)
	stds := make([]float64, dims)

	for d := 0; d < dims; d++ {
		sum := 0.0
		for _, v := range vectors {
			sum += v[d]
		}
		means[d] = sum / float64(len(vectors))

		varSum := 0.0
		for _, v := range vectors {
			diff := v[d] - means[d]
			varSum += diff * diff
		}
		stds[d] = math.Sqrt(varSum / float64(len(vectors)))
		if stds[d] == 0 {
			stds[d] = 1
		}
	}
	return means, stds
}
