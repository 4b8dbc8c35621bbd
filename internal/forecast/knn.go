package forecast

import (
	"fmt"
	"math"
	"sort"
)

// KNN is the nearest-neighbor comparison baseline: it predicts the mean
// target of the k training rows closest in standardized feature space.
type KNN struct {
	k int

	features [][]float64
	targets  []float64
	means    []float64
	stds     []float64
}

// NewKNN creates a nearest-neighbor regressor
func NewKNN(k int) *KNN {
	return &KNN{k: k}
}

// ID returns the model identifier
func (m *KNN) ID() ModelID { return ModelKNN }

// Fit memorizes the training set and its per-feature standardization, so
// large-magnitude lag features do not drown the calendar features.
func (m *KNN) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(features) != len(targets) {
		return fmt.Errorf("invalid training set: %d feature rows, %d targets", len(features), len(targets))
	}

	dims := len(features[0])
	m.means = make([]float64, dims)
	m.stds = make([]float64, dims)

	for d := 0; d < dims; d++ {
		sum := 0.0
		for _, row := range features {
			sum += row[d]
		}
		m.means[d] = sum / float64(len(features))

		varSum := 0.0
		for _, row := range features {
			diff := row[d] - m.means[d]
			varSum += diff * diff
		}
		m.stds[d] = math.Sqrt(varSum / float64(len(features)))
		if m.stds[d] == 0 {
			m.stds[d] = 1
		}
	}

	m.features = make([][]float64, len(features))
	for i, row := range features {
		m.features[i] = m.standardize(row)
	}
	m.targets = append([]float64(nil), targets...)

	return nil
}

// Predict returns the mean target of the k nearest training rows
func (m *KNN) Predict(features []float64) float64 {
	query := m.standardize(features)

	type neighbor struct {
		dist   float64
		target float64
	}
	neighbors := make([]neighbor, len(m.features))
	for i, row := range m.features {
		dist := 0.0
		for d := range row {
			diff := row[d] - query[d]
			dist += diff * diff
		}
		neighbors[i] = neighbor{dist: dist, target: m.targets[i]}
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := m.k
	if k > len(neighbors) {
		k = len(neighbors)
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += neighbors[i].target
	}
	return sum / float64(k)
}

func (m *KNN) standardize(row []float64) []float64 {
	out := make([]float64, len(row))
	for d := range row {
		out[d] = (row[d] - m.means[d]) / m.stds[d]
	}
	return out
}
