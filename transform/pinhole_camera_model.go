package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// PinholeCameraModel is the model of a pinhole camera: intrinsics plus the lens distortion measured
// in the same calibration session.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               *BrownConrady `json:"distortion"`
}

// CheckValid checks both halves of the model.
func (params *PinholeCameraModel) CheckValid() error {
	if params == nil {
		return NewCalibrationError("camera model does not exist")
	}
	if err := params.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if params.Distortion == nil {
		return nil
	}
	return params.Distortion.CheckValid()
}

// ScaledTo returns the model for a capture resolution. Only the intrinsics are rescaled.
func (params *PinholeCameraModel) ScaledTo(capWidth, capHeight int) (*PinholeCameraModel, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	scaled, err := params.PinholeCameraIntrinsics.ScaledTo(capWidth, capHeight)
	if err != nil {
		return nil, err
	}
	return &PinholeCameraModel{PinholeCameraIntrinsics: scaled, Distortion: params.Distortion}, nil
}

// UndistortPixel recovers the pixel an ideal, distortion free pinhole camera would have observed.
// The same intrinsics normalize the observed pixel and re-project the result, so the output stays
// in pixel units.
func UndistortPixel(pixel r2.Point, k *PinholeCameraIntrinsics, dist *BrownConrady, opts UndistortOptions) (r2.Point, error) {
	if err := k.CheckValid(); err != nil {
		return r2.Point{}, err
	}
	if dist.IsZero() {
		return pixel, nil
	}
	xd, yd := k.PixelToNormalized(pixel.X, pixel.Y)
	xu, yu, err := dist.Undistort(xd, yd, opts)
	if err != nil {
		return r2.Point{}, err
	}
	u, v := k.NormalizedToPixel(xu, yu)
	return r2.Point{X: u, Y: v}, nil
}

// UndistortPixel undistorts a pixel with the model's own intrinsics and distortion.
func (params *PinholeCameraModel) UndistortPixel(pixel r2.Point, opts UndistortOptions) (r2.Point, error) {
	if params == nil {
		return r2.Point{}, NewCalibrationError("camera model does not exist")
	}
	return UndistortPixel(pixel, params.PinholeCameraIntrinsics, params.Distortion, opts)
}

// DistortPixel is the forward counterpart of UndistortPixel: it maps an ideal pixel to the pixel
// the real lens produces.
func (params *PinholeCameraModel) DistortPixel(pixel r2.Point) r2.Point {
	x, y := params.PixelToNormalized(pixel.X, pixel.Y)
	x, y = params.Distortion.Distort(x, y)
	u, v := params.NormalizedToPixel(x, y)
	return r2.Point{X: u, Y: v}
}

// ProjectPoint projects a camera frame point through the lens to the pixel it would be observed at.
func (params *PinholeCameraModel) ProjectPoint(pt r3.Vector) (r2.Point, error) {
	ideal, err := params.PointToPixel(pt)
	if err != nil {
		return r2.Point{}, err
	}
	return params.DistortPixel(ideal), nil
}
