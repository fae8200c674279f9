// Package ml fits regression models to predict the congestion score from the
// observed traffic features and reports their held-out error.
package ml

import (
	"errors"
	"fmt"
)

// Regressor is a model that learns a mapping from feature rows to a target.
// Implementations must not modify X or y.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Model pairs a report name with a constructor. New receives the evaluation
// seed so randomized models are reproducible.
type Model struct {
	Name string
	New  func(seed uint64) Regressor
}

// Model names as they appear in the report.
const (
	LinearRegressionName = "Linear Regression"
	DecisionTreeName     = "Decision Tree"
	RandomForestName     = "Random Forest"
)

// DefaultForestSize is the number of trees in the random forest.
const DefaultForestSize = 100

// DefaultModels returns the three evaluated models in report order.
func DefaultModels() []Model {
	return []Model{
		{Name: LinearRegressionName, New: func(uint64) Regressor { return NewLinearRegression() }},
		{Name: DecisionTreeName, New: func(seed uint64) Regressor { return NewDecisionTree(seed) }},
		{Name: RandomForestName, New: func(seed uint64) Regressor { return NewRandomForest(DefaultForestSize, seed) }},
	}
}

var (
	errNotFitted    = errors.New("model is not fitted")
	errEmptyDataset = errors.New("empty training set")
)

// checkShape validates that X is a non-empty rectangular matrix matching y.
func checkShape(X [][]float64, y []float64) (rows, cols int, err error) {
	if len(X) == 0 {
		return 0, 0, errEmptyDataset
	}
	if len(X) != len(y) {
		return 0, 0, fmt.Errorf("feature rows %d do not match targets %d", len(X), len(y))
	}
	cols = len(X[0])
	for i, row := range X {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), cols)
		}
	}
	return len(X), cols, nil
}
