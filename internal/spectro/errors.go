package spectro

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning   = errors.New("pipeline is not running")
	ErrNoSpectrum   = errors.New("no spectrum available")
	ErrNoReference  = errors.New("no reference spectrum set")
	ErrInvalidState = errors.New("operation not valid in current state")
)

// DeviceError wraps a failure of the frame source. It is fatal to a running
// session.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ConfigValidationError rejects a configuration update. The previous
// configuration stays in effect.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalidf builds a ConfigValidationError.
func Invalidf(field, format string, args ...interface{}) error {
	return &ConfigValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NonMonotonicError rejects a table whose keys are not strictly increasing.
type NonMonotonicError struct {
	What  string
	Index int
	Prev  float64
	Value float64
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("%s not strictly increasing at index %d (%g after %g)", e.What, e.Index, e.Value, e.Prev)
}

// CheckIncreasing returns a NonMonotonicError for the first element of xs that
// does not exceed its predecessor.
func CheckIncreasing(what string, xs []float64) error {
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return &NonMonotonicError{What: what, Index: i, Prev: xs[i-1], Value: xs[i]}
		}
	}
	return nil
}
