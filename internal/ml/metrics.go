package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics is the held-out error of one model, rounded to three decimals.
type Metrics struct {
	RMSE float64 `json:"RMSE" yaml:"RMSE"`
	R2   float64 `json:"R2" yaml:"R2"`
}

// Performance maps model names to their metrics.
type Performance map[string]Metrics

// ZeroPerformance returns zero metrics for every model in models.
func ZeroPerformance(models []Model) Performance {
	p := make(Performance, len(models))
	for _, m := range models {
		p[m.Name] = Metrics{}
	}
	return p
}

var errNonFinite = errors.New("non-finite prediction or metric")

// Score computes RMSE and R² of predictions against actual targets. Predictions
// or metrics that are NaN or infinite return errNonFinite.
// A constant target scores R² 1 for a perfect fit and 0 otherwise; a single
// held-out sample scores R² 0.
func Score(predicted, actual []float64) (Metrics, error) {
	if len(predicted) != len(actual) {
		return Metrics{}, fmt.Errorf("score: %d predictions for %d targets", len(predicted), len(actual))
	}
	if len(actual) == 0 {
		return Metrics{}, errors.New("score: no held-out samples")
	}
	for _, p := range predicted {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Metrics{}, errNonFinite
		}
	}

	rmse := floats.Distance(predicted, actual, 2) / math.Sqrt(float64(len(actual)))
	r2 := rSquared(predicted, actual)
	if !finite(rmse) || !finite(r2) {
		return Metrics{}, errNonFinite
	}
	return Metrics{
		RMSE: domain.Round3(rmse),
		R2:   domain.Round3(r2),
	}, nil
}

func rSquared(predicted, actual []float64) float64 {
	if len(actual) < 2 {
		return 0
	}
	mean := stat.Mean(actual, nil)
	var ssTot, ssRes float64
	for i, a := range actual {
		ssTot += (a - mean) * (a - mean)
		ssRes += (a - predicted[i]) * (a - predicted[i])
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(predicted, actual, nil)
}
