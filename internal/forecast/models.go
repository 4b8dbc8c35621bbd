package forecast

import (
	"time"

	"github.com/urbanflow/trip-demand/internal/aggregate"
)

// ModelID tags which regressor produced a forecast. Both models run every
// generation so their accuracy can be compared offline.
type ModelID string

const (
	ModelGBRT ModelID = "gbrt"
	ModelKNN  ModelID = "knn"
)

// Model is the shared surface of the competing regressors
type Model interface {
	ID() ModelID
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) float64
}

// Point is one forecasted step with its confidence interval
type Point struct {
	TargetTime time.Time `json:"target_time"`
	Estimate   float64   `json:"estimate"`
	Lower      float64   `json:"lower"`
	Upper      float64   `json:"upper"`
}

// Accuracy summarizes a model's error on the held-out tail
type Accuracy struct {
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	MAPE    float64 `json:"mape"`
	Samples int     `json:"samples_evaluated"`
}

// Result is one model's forecast for one scope. Superseded, never merged,
// by the next generation for the same scope.
type Result struct {
	Scope       aggregate.ScopeKey `json:"scope"`
	Model       ModelID            `json:"model"`
	GeneratedAt time.Time          `json:"generated_at"`
	Points      []Point            `json:"points"`
	Accuracy    *Accuracy          `json:"accuracy,omitempty"`
}
