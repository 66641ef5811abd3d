package transform

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCalibration is matched by every error caused by missing, malformed or numerically
// unusable calibration data.
var ErrCalibration = errors.New("invalid camera calibration")

// NewCalibrationError wraps ErrCalibration with a formatted description.
func NewCalibrationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCalibration, format, args...)
}

// ErrGeometry is matched by every GeometryError.
var ErrGeometry = errors.New("geometry error")

// GeometryError is returned when undistortion cannot find the ideal pixel for an
// observation, typically because it lies far outside the calibrated field of view.
type GeometryError struct {
	X, Y       float64
	Iterations int
	Residual   float64
	Reason     string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: cannot undistort point (%g, %g): %s after %d iterations (residual %g)",
		ErrGeometry, e.X, e.Y, e.Reason, e.Iterations, e.Residual)
}

// Is lets errors.Is match a GeometryError against ErrGeometry.
func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometry
}
