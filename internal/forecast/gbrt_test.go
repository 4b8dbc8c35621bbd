package forecast

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(5))
	features := make([][]float64, 0, n)
	targets := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x := rng.Float64()
		y := 2.0
		if x > 0.5 {
			y = 10.0
		}
		features = append(features, []float64{x, rng.Float64()})
		targets = append(targets, y)
	}
	return features, targets
}

func TestGBRT_LearnsStepFunction(t *testing.T) {
	features, targets := stepData(200)

	model := NewGBRT(50, 3, 0.1)
	require.NoError(t, model.Fit(features, targets))

	assert.InDelta(t, 10.0, model.Predict([]float64{0.9, 0.5}), 0.5)
	assert.InDelta(t, 2.0, model.Predict([]float64{0.1, 0.5}), 0.5)
}

func TestGBRT_DeterministicRefit(t *testing.T) {
	features, targets := stepData(150)

	a := NewGBRT(30, 3, 0.1)
	b := NewGBRT(30, 3, 0.1)
	require.NoError(t, a.Fit(features, targets))
	require.NoError(t, b.Fit(features, targets))

	probe := []float64{0.42, 0.17}
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
}

func TestGBRT_RejectsEmptyTrainingSet(t *testing.T) {
	model := NewGBRT(10, 3, 0.1)
	assert.Error(t, model.Fit(nil, nil))
	assert.Error(t, model.Fit([][]float64{{1}}, []float64{1, 2}))
}

func TestGBRT_ConstantTarget(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}, {9}, {10}, {11}, {12}}
	targets := make([]float64, len(features))
	for i := range targets {
		targets[i] = 7.5
	}

	model := NewGBRT(20, 3, 0.1)
	require.NoError(t, model.Fit(features, targets))
	assert.InDelta(t, 7.5, model.Predict([]float64{6}), 1e-9)
}

func TestKNN_PredictsNeighborhoodMean(t *testing.T) {
	features := [][]float64{
		{0.0}, {0.1}, {0.2},
		{10.0}, {10.1}, {10.2},
	}
	targets := []float64{1, 1, 1, 9, 9, 9}

	model := NewKNN(3)
	require.NoError(t, model.Fit(features, targets))

	assert.InDelta(t, 1.0, model.Predict([]float64{0.05}), 1e-9)
	assert.InDelta(t, 9.0, model.Predict([]float64{10.05}), 1e-9)
}

func TestKNN_KLargerThanTrainingSet(t *testing.T) {
	features := [][]float64{{1}, {2}}
	targets := []float64{4, 6}

	model := NewKNN(10)
	require.NoError(t, model.Fit(features, targets))
	assert.InDelta(t, 5.0, model.Predict([]float64{1.5}), 1e-9)
}

func TestModelIDs(t *testing.T) {
	assert.Equal(t, ModelGBRT, NewGBRT(1, 1, 0.1).ID())
	assert.Equal(t, ModelKNN, NewKNN(1).ID())
}
