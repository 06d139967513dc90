package models

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed StrategySpec, rejected before any
// simulation runs.
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid strategy: %s", e.Reason)
}

// DataError marks an unusable bar series: empty data, a missing indicator
// variable, or a non-finite price column. Fatal, never retried.
type DataError struct {
	Reason string
	Cause  error
}

func NewDataError(reason string, cause error) *DataError {
	return &DataError{Reason: reason, Cause: cause}
}

func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("data error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("data error: %s", e.Reason)
}

func (e *DataError) Unwrap() error { return e.Cause }

// MissingIndicatorError is a DataError for a comparison variable that does
// not resolve to any bar column.
type MissingIndicatorError struct {
	Variable string
}

func (e *MissingIndicatorError) Error() string {
	return fmt.Sprintf("data error: variable %q does not resolve to any bar column", e.Variable)
}

// IndicatorError marks an unknown indicator name or invalid indicator
// parameters; simulation setup aborts on it.
type IndicatorError struct {
	Indicator string
	Reason    string
}

func (e *IndicatorError) Error() string {
	return fmt.Sprintf("indicator %s: %s", e.Indicator, e.Reason)
}

// OptimizationSetupError aborts an optimization job before any trials run.
type OptimizationSetupError struct {
	Reason string
}

func (e *OptimizationSetupError) Error() string {
	return fmt.Sprintf("optimization setup: %s", e.Reason)
}

// NotFoundError marks a lookup of an id the system does not know.
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// ErrDataUnavailable is returned by market data providers when a request
// yields no usable bars.
var ErrDataUnavailable = errors.New("no market data available for the requested range")
