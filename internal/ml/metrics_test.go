package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		predicted []float64
		actual    []float64
		want      Metrics
	}{
		{
			name:      "perfect",
			predicted: []float64{0.1, 0.5, 0.9},
			actual:    []float64{0.1, 0.5, 0.9},
			want:      Metrics{RMSE: 0, R2: 1},
		},
		{
			name:      "mean predictor",
			predicted: []float64{0.5, 0.5},
			actual:    []float64{0, 1},
			want:      Metrics{RMSE: 0.5, R2: 0},
		},
		{
			name:      "constant target exact",
			predicted: []float64{0.3, 0.3},
			actual:    []float64{0.3, 0.3},
			want:      Metrics{RMSE: 0, R2: 1},
		},
		{
			name:      "constant target missed",
			predicted: []float64{0.4, 0.2},
			actual:    []float64{0.3, 0.3},
			want:      Metrics{RMSE: 0.1, R2: 0},
		},
		{
			name:      "single held-out sample",
			predicted: []float64{0.25},
			actual:    []float64{0.5},
			want:      Metrics{RMSE: 0.25, R2: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.predicted, tt.actual)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore_Errors(t *testing.T) {
	_, err := Score([]float64{1}, []float64{1, 2})
	require.Error(t, err)

	_, err = Score(nil, nil)
	require.Error(t, err)

	_, err = Score([]float64{math.NaN(), 1}, []float64{1, 2})
	require.ErrorIs(t, err, errNonFinite)
}

func TestScore_OverflowingResidual(t *testing.T) {
	// Finite predictions whose squared residual overflows to +Inf.
	m, err := Score([]float64{1e300, 0}, []float64{0, 1})
	require.ErrorIs(t, err, errNonFinite)
	assert.Equal(t, Metrics{}, m)
}

func TestTrainTestSplit(t *testing.T) {
	s := TrainTestSplit(10, DefaultTestFraction, DefaultSeed)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, s.Train...), s.Test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	again := TrainTestSplit(10, DefaultTestFraction, DefaultSeed)
	assert.Equal(t, s, again)
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	tests := []struct {
		n, train, test int
	}{
		{n: 5, train: 4, test: 1},
		{n: 11, train: 8, test: 3},
		{n: 100, train: 80, test: 20},
		{n: 1, train: 1, test: 0},
		{n: 0, train: 0, test: 0},
	}
	for _, tt := range tests {
		s := TrainTestSplit(tt.n, DefaultTestFraction, DefaultSeed)
		assert.Len(t, s.Train, tt.train, "n=%d", tt.n)
		assert.Len(t, s.Test, tt.test, "n=%d", tt.n)
	}
}
