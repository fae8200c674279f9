package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// machineEpsilon is the float64 unit roundoff used to scale the rank cutoff.
const machineEpsilon = 0x1p-52

// LinearRegression is ordinary least squares with an intercept. Rank-deficient
// designs (constant or collinear features) get the minimum-norm solution.
type LinearRegression struct {
	coef      []float64
	intercept float64
	fitted    bool
}

// NewLinearRegression returns an unfitted OLS model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves the centered least-squares problem through a thin SVD.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	rows, cols, err := checkShape(X, y)
	if err != nil {
		return fmt.Errorf("linear regression: %w", err)
	}

	xMean := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = X[i][j]
		}
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, X[i][j]-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return errors.New("linear regression: SVD did not converge")
	}

	coef := make([]float64, cols)
	rcond := float64(max(rows, cols)) * machineEpsilon
	if rank := svd.Rank(rcond); rank > 0 {
		var x mat.VecDense
		svd.SolveVecTo(&x, b, rank)
		for j := range coef {
			coef[j] = x.AtVec(j)
		}
	}

	m.coef = coef
	m.intercept = yMean - floats.Dot(xMean, coef)
	m.fitted = true
	return nil
}

// Predict evaluates the fitted linear function for each row.
func (m *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.coef) {
			return nil, fmt.Errorf("linear regression: row %d has %d features, want %d", i, len(row), len(m.coef))
		}
		out[i] = m.intercept + floats.Dot(row, m.coef)
	}
	return out, nil
}

// Coefficients returns a copy of the fitted slope per feature and the intercept.
func (m *LinearRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.coef...), m.intercept
}
