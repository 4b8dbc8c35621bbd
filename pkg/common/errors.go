package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline-level failure classes. Callers dispatch with
// errors.Is, so wrapped context never hides the class.
var (
	// ErrUpstreamIncomplete indicates a stage was invoked before every
	// upstream partition it depends on had completed.
	ErrUpstreamIncomplete = errors.New("upstream stage incomplete")

	// ErrInsufficientData indicates a scope lacks enough history for a
	// statistically meaningful model result.
	ErrInsufficientData = errors.New("insufficient data for scope")
)

// SchemaError reports a raw record batch whose shape could not be mapped to
// the canonical trip record. It aborts the affected partition, never the run.
type SchemaError struct {
	VehicleType string
	Detail      string
	Err         error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error for vehicle type %q: %s: %v", e.VehicleType, e.Detail, e.Err)
	}
	return fmt.Sprintf("schema error for vehicle type %q: %s", e.VehicleType, e.Detail)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NewSchemaError creates a SchemaError
func NewSchemaError(vehicleType, detail string, err error) *SchemaError {
	return &SchemaError{VehicleType: vehicleType, Detail: detail, Err: err}
}

// InsufficientDataError reports how far short of the minimum a scope fell.
type InsufficientDataError struct {
	Scope    string
	Observed int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for scope %q: %d observations, %d required", e.Scope, e.Observed, e.Required)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// NewInsufficientDataError creates an InsufficientDataError
func NewInsufficientDataError(scope string, observed, required int) *InsufficientDataError {
	return &InsufficientDataError{Scope: scope, Observed: observed, Required: required}
}

// TransientError marks a failure acquiring external compute or storage that
// is worth retrying with backoff before escalating.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError creates a TransientError
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
