// Package calibration loads camera calibrations and holds the one in use.
//
// A Calibration is immutable once built. Recalibrating means building a new Calibration and
// installing it in a Provider, which readers observe on their next call to Current.
package calibration

import (
	"time"

	"go.viam.com/sphereloc/transform"
)

// Calibration is a camera model measured at a reference resolution, bound to the resolution frames
// are normally captured at.
type Calibration struct {
	reference     transform.PinholeCameraModel
	captureWidth  int
	captureHeight int
	scaled        transform.PinholeCameraModel
	source        string
	loadedAt      time.Time
}

// New validates model and precomputes its intrinsics for captureWidth x captureHeight. A zero
// capture resolution means frames are captured at the reference resolution.
func New(model *transform.PinholeCameraModel, captureWidth, captureHeight int) (*Calibration, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if captureWidth == 0 && captureHeight == 0 {
		captureWidth, captureHeight = model.Width, model.Height
	}
	scaled, err := model.ScaledTo(captureWidth, captureHeight)
	if err != nil {
		return nil, err
	}
	return &Calibration{
		reference:     copyModel(model),
		captureWidth:  captureWidth,
		captureHeight: captureHeight,
		scaled:        copyModel(scaled),
		loadedAt:      time.Now(),
	}, nil
}

func copyModel(model *transform.PinholeCameraModel) transform.PinholeCameraModel {
	intrinsics := *model.PinholeCameraIntrinsics
	out := transform.PinholeCameraModel{PinholeCameraIntrinsics: &intrinsics}
	if model.Distortion != nil {
		dist := *model.Distortion
		out.Distortion = &dist
	}
	return out
}

// Reference returns a copy of the model at its calibration resolution.
func (c *Calibration) Reference() *transform.PinholeCameraModel {
	m := copyModel(&c.reference)
	return &m
}

// Model returns a copy of the model scaled to the configured capture resolution.
func (c *Calibration) Model() *transform.PinholeCameraModel {
	m := copyModel(&c.scaled)
	return &m
}

// CaptureResolution returns the configured capture resolution.
func (c *Calibration) CaptureResolution() (int, int) {
	return c.captureWidth, c.captureHeight
}

// ReferenceResolution returns the resolution the camera was calibrated at.
func (c *Calibration) ReferenceResolution() (int, int) {
	return c.reference.Width, c.reference.Height
}

// Source is the file the calibration was read from, if any.
func (c *Calibration) Source() string {
	return c.source
}

// LoadedAt is when the calibration was built.
func (c *Calibration) LoadedAt() time.Time {
	return c.loadedAt
}

// ForCapture returns the model for frames captured at width x height. Zero values fall back to
// the configured capture resolution. Non-positive dimensions are a calibration error.
func (c *Calibration) ForCapture(width, height int) (*transform.PinholeCameraModel, error) {
	if (width == 0 && height == 0) || (width == c.captureWidth && height == c.captureHeight) {
		return c.Model(), nil
	}
	return c.Reference().ScaledTo(width, height)
}
