package transform

import (
	"gonum.org/v1/gonum/mat"
)

// ResizeScale relates the resolution a camera was calibrated at to the resolution frames are
// captured (or resized) at.
type ResizeScale struct {
	Sx float64 `json:"sx"`
	Sy float64 `json:"sy"`
}

// IdentityScale is the scale used when no resize metadata is supplied.
var IdentityScale = ResizeScale{Sx: 1, Sy: 1}

// NewResizeScale computes sx = capWidth/refWidth and sy = capHeight/refHeight.
func NewResizeScale(refWidth, refHeight, capWidth, capHeight int) (ResizeScale, error) {
	if refWidth <= 0 || refHeight <= 0 {
		return ResizeScale{}, NewCalibrationError("invalid reference resolution (%d, %d)", refWidth, refHeight)
	}
	if capWidth <= 0 || capHeight <= 0 {
		return ResizeScale{}, NewCalibrationError("invalid capture resolution (%d, %d)", capWidth, capHeight)
	}
	return ResizeScale{
		Sx: float64(capWidth) / float64(refWidth),
		Sy: float64(capHeight) / float64(refHeight),
	}, nil
}

// IsIdentity returns whether the scale leaves intrinsics unchanged.
func (s ResizeScale) IsIdentity() bool {
	return s.Sx == 1 && s.Sy == 1
}

// Matrix returns diag(sx, sy, 1).
func (s ResizeScale) Matrix() *mat.DiagDense {
	return mat.NewDiagDense(3, []float64{s.Sx, s.Sy, 1})
}

// ScaleIntrinsics returns S·K for S = diag(sx, sy, 1), the intrinsics valid for images captured at
// capWidth x capHeight when kRef was calibrated at refWidth x refHeight. Distortion coefficients live
// in normalized coordinates and are never rescaled.
func ScaleIntrinsics(kRef *PinholeCameraIntrinsics, refWidth, refHeight, capWidth, capHeight int) (*PinholeCameraIntrinsics, error) {
	if err := kRef.CheckValid(); err != nil {
		return nil, err
	}
	scale, err := NewResizeScale(refWidth, refHeight, capWidth, capHeight)
	if err != nil {
		return nil, err
	}
	return kRef.Scale(scale, capWidth, capHeight), nil
}

// Scale applies a resize scale to the intrinsics, returning a new value sized width x height.
func (params *PinholeCameraIntrinsics) Scale(scale ResizeScale, width, height int) *PinholeCameraIntrinsics {
	if scale.IsIdentity() {
		scaled := *params
		scaled.Width, scaled.Height = width, height
		return &scaled
	}
	var k mat.Dense
	k.Mul(scale.Matrix(), params.GetCameraMatrix())
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k.At(0, 0),
		Skew:   k.At(0, 1),
		Ppx:    k.At(0, 2),
		Fy:     k.At(1, 1),
		Ppy:    k.At(1, 2),
	}
}

// ScaledTo returns the intrinsics for a capture resolution. A zero width and height means no resize
// metadata was supplied and the calibration resolution is kept.
func (params *PinholeCameraIntrinsics) ScaledTo(capWidth, capHeight int) (*PinholeCameraIntrinsics, error) {
	if capWidth == 0 && capHeight == 0 {
		capWidth, capHeight = params.Width, params.Height
	}
	return ScaleIntrinsics(params, params.Width, params.Height, capWidth, capHeight)
}
