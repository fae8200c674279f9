package domain

import (
	"errors"
	"fmt"
)

// Sentinel causes for load failures.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrEmptyInput   = errors.New("no columns to parse from file")
	ErrRaggedRow    = errors.New("row has more fields than the header")
)

// LoadError means the input could not be read as a table at all.
type LoadError struct {
	Path  string
	Cause string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return "load table: " + e.Cause
	}
	return fmt.Sprintf("load table %s: %s", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err as a LoadError for path.
func NewLoadError(path string, err error) *LoadError {
	return &LoadError{Path: path, Cause: err.Error(), Err: err}
}

// ModelFitError is a failure confined to one model of the evaluation harness.
type ModelFitError struct {
	Model string
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// AggregationError is a failure computing indicators; the indicators degrade to zero.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate indicators: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// UnexpectedError is anything that escaped the local recovery boundaries.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Recovered converts a recovered panic value into an error.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
