// Package localize estimates the camera frame position of a sphere of known size from a single
// pixel observation of its center and apparent diameter.
package localize

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/sphereloc/transform"
)

// Options tunes the engine.
type Options struct {
	Undistort transform.UndistortOptions
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Undistort: transform.DefaultUndistortOptions()}
}

// LocalizedPoint is a position in the camera frame, in the units of the true object diameter.
// Z points along the optical axis.
type LocalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewLocalizedPoint converts a vector into a LocalizedPoint.
func NewLocalizedPoint(v r3.Vector) LocalizedPoint {
	return LocalizedPoint{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector returns the point as an r3.Vector.
func (p LocalizedPoint) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Result is a localized point together with the intermediate values that produced it.
type Result struct {
	Point LocalizedPoint `json:"point"`
	// UndistortedCenter is the center pixel an ideal pinhole camera would have observed.
	UndistortedCenter r2.Point `json:"-"`
	// Ray is K⁻¹·[u, v, 1]ᵀ for the undistorted center; its Z is 1.
	Ray r3.Vector `json:"-"`
	// DepthScale is trueDiameter * f / diameter.
	DepthScale float64 `json:"depth_scale"`
	// FocalLength is the mean of fx and fy used for depth.
	FocalLength float64 `json:"focal_length"`
	// CalibrationSource names the calibration used, when it came from a file.
	CalibrationSource string `json:"-"`
}

// Localize returns the camera frame position of a sphere of diameter trueDiameter observed by a
// camera whose intrinsics are already scaled to the capture resolution of obs.
func Localize(obs Observation, model *transform.PinholeCameraModel, trueDiameter float64, opts Options) (LocalizedPoint, error) {
	res, err := LocalizeDetailed(obs, model, trueDiameter, opts)
	if err != nil {
		return LocalizedPoint{}, err
	}
	return res.Point, nil
}

// LocalizeDetailed is Localize returning the intermediate values as well.
//
// Depth comes from similar triangles: a sphere of diameter D that spans d pixels at focal length f
// lies at depth D*f/d. The focal length is the mean of fx and fy, which assumes near-square pixels,
// and the apparent diameter is not corrected for off-axis foreshortening.
func LocalizeDetailed(obs Observation, model *transform.PinholeCameraModel, trueDiameter float64, opts Options) (*Result, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(trueDiameter) || math.IsInf(trueDiameter, 0) || trueDiameter <= 0 {
		return nil, newInvalidObservationError(FieldTrueDiameter, trueDiameter, "must be a positive finite number")
	}
	if model == nil {
		return nil, transform.NewCalibrationError("camera model does not exist")
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	// conditioning of K is checked before any pixel is touched
	if _, err := model.BackProject(r2.Point{X: model.Ppx, Y: model.Ppy}); err != nil {
		return nil, err
	}

	f := model.FocalLength()
	depthScale := trueDiameter * f / obs.Diameter

	center, err := model.UndistortPixel(obs.Center(), opts.Undistort)
	if err != nil {
		return nil, err
	}
	ray, err := model.BackProject(center)
	if err != nil {
		return nil, err
	}

	return &Result{
		Point:             NewLocalizedPoint(ray.Mul(depthScale)),
		UndistortedCenter: center,
		Ray:               ray,
		DepthScale:        depthScale,
		FocalLength:       f,
	}, nil
}
