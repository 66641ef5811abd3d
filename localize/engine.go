package localize

import (
	"go.viam.com/sphereloc/calibration"
	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/transform"
)

// CalibrationSource supplies the calibration in use. calibration.Provider implements it.
type CalibrationSource interface {
	Current() *calibration.Calibration
}

// Request is an observation plus the resolution of the frame it was made in. A zero resolution
// means the frame was captured at the calibration's configured capture resolution.
type Request struct {
	Observation
	ImageWidth  int `json:"imageWidth,omitempty"`
	ImageHeight int `json:"imageHeight,omitempty"`
}

// ParseRequest validates untyped input into a Request. The observation fields are checked first,
// then the optional image size, which must be given as both width and height or not at all.
func ParseRequest(raw map[string]interface{}) (Request, error) {
	obs, err := ParseObservation(raw)
	if err != nil {
		return Request{}, err
	}
	width, hasWidth, err := optionalDimension(raw, FieldImageWidth)
	if err != nil {
		return Request{}, err
	}
	height, hasHeight, err := optionalDimension(raw, FieldImageHeight)
	if err != nil {
		return Request{}, err
	}
	if hasWidth != hasHeight {
		if !hasWidth {
			return Request{}, newInvalidObservationError(FieldImageWidth, nil, "is required when imageHeight is given")
		}
		return Request{}, newInvalidObservationError(FieldImageHeight, nil, "is required when imageWidth is given")
	}
	return Request{Observation: obs, ImageWidth: width, ImageHeight: height}, nil
}

// Engine localizes requests against the current calibration for an object of fixed size.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	calibrations CalibrationSource
	trueDiameter float64
	units        string
	opts         Options
	logger       logging.Logger
}

// NewEngine returns an engine for a sphere of diameter trueDiameter, expressed in units.
func NewEngine(calibrations CalibrationSource, trueDiameter float64, units string, opts Options, logger logging.Logger) (*Engine, error) {
	if calibrations == nil {
		return nil, transform.NewCalibrationError("no calibration source")
	}
	if trueDiameter <= 0 || !isFinite(trueDiameter) {
		return nil, newInvalidObservationError(FieldTrueDiameter, trueDiameter, "must be a positive finite number")
	}
	if err := opts.Undistort.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		calibrations: calibrations,
		trueDiameter: trueDiameter,
		units:        units,
		opts:         opts,
		logger:       logger,
	}, nil
}

// Units is the unit of every localized coordinate.
func (e *Engine) Units() string {
	return e.units
}

// TrueDiameter is the configured physical diameter of the sphere.
func (e *Engine) TrueDiameter() float64 {
	return e.trueDiameter
}

// Localize resolves the camera model for the request's resolution from the current calibration
// and localizes the observation with it.
func (e *Engine) Localize(req Request) (*Result, error) {
	cal := e.calibrations.Current()
	if cal == nil {
		return nil, transform.NewCalibrationError("no calibration loaded")
	}
	if err := req.Observation.Validate(); err != nil {
		return nil, err
	}
	model, err := cal.ForCapture(req.ImageWidth, req.ImageHeight)
	if err != nil {
		return nil, err
	}
	res, err := LocalizeDetailed(req.Observation, model, e.trueDiameter, e.opts)
	if err != nil {
		e.logger.Debugw("localization failed", "observation", req.Observation, "error", err)
		return nil, err
	}
	res.CalibrationSource = cal.Source()
	e.logger.Debugw("localized",
		"centerX", req.CenterX, "centerY", req.CenterY, "diameter", req.Diameter,
		"x", res.Point.X, "y", res.Point.Y, "z", res.Point.Z, "units", e.units)
	return res, nil
}
