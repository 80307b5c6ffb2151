// Package errors provides the structured error and warning types used
// across the forester library, built on cockroachdb/errors for stack
// traces and on zerolog for structured marshaling.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("forester-warning: %v\n", w)
	}
)

// SetWarningHandler replaces the library-wide warning handler. Warnings
// report conditions that are absorbed locally (a singular rotation group,
// an unsplittable node) and never abort training.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn emits a warning through the registered handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	if warningHandler != nil {
		warningHandler(w)
	}
}

// DegenerateRotationWarning is emitted when a rotation-forest feature
// group has a singular covariance and falls back to an identity block.
type DegenerateRotationWarning struct {
	TreeIndex  int
	GroupIndex int
	Reason     string
}

func (w *DegenerateRotationWarning) Error() string {
	return fmt.Sprintf("rotation group %d of tree %d is degenerate (%s); using identity block",
		w.GroupIndex, w.TreeIndex, w.Reason)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *DegenerateRotationWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("tree_index", w.TreeIndex).
		Int("group_index", w.GroupIndex).
		Str("reason", w.Reason).
		Str("type", "DegenerateRotationWarning")
}

// NewDegenerateRotationWarning creates a new DegenerateRotationWarning.
func NewDegenerateRotationWarning(tree, group int, reason string) *DegenerateRotationWarning {
	return &DegenerateRotationWarning{TreeIndex: tree, GroupIndex: group, Reason: reason}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// NotFittedError reports a call to Predict or another inference method
// on a model that has not been fitted yet.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("forester: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports disagreeing feature counts or row lengths,
// either at load time or at prediction time.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("forester: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValueError reports an invalid input value, typically a NaN or Inf
// feature or label. Non-finite values are rejected, never coerced.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("forester: %s: %s", e.Op, e.Message)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValueError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("message", e.Message).
		Str("type", "ValueError")
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ConfigError reports an invalid hyperparameter. It is surfaced by Fit
// before any training work touches the dataset.
type ConfigError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("forester: invalid configuration for '%s': %s (got: %v)", e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError creates a ConfigError with a stack trace attached.
func NewConfigError(param, reason string, value interface{}) error {
	err := &ConfigError{Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an existing error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common error values
//
// ===========================================================================

var (
	// ErrEmptyData is returned when a dataset has no samples.
	ErrEmptyData = New("empty data")
)
