package localize

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidObservation is matched by every InvalidObservationError.
var ErrInvalidObservation = errors.New("invalid observation")

// InvalidObservationError reports the first observation field that failed validation.
type InvalidObservationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidObservationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s %s", ErrInvalidObservation, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s, got %v", ErrInvalidObservation, e.Field, e.Reason, e.Value)
}

// Is lets errors.Is match an InvalidObservationError against ErrInvalidObservation.
func (e *InvalidObservationError) Is(target error) bool {
	return target == ErrInvalidObservation
}

func newInvalidObservationError(field string, value interface{}, reason string) error {
	return &InvalidObservationError{Field: field, Value: value, Reason: reason}
}
