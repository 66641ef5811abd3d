// Package transform contains the pinhole camera model: intrinsics, resolution scaling and
// Brown-Conrady lens distortion.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene
// to the 2D plane, as calibrated at a reference resolution of Width x Height pixels.
//
// Camera matrix:
// [[fx skew ppx],
//
//	[0  fy   ppy],
//	[0  0    1]]
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
	Skew   float64 `json:"skew,omitempty"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewCalibrationError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewCalibrationError("invalid size (%#v, %#v)", params.Width, params.Height)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"fx", params.Fx}, {"fy", params.Fy}, {"ppx", params.Ppx}, {"ppy", params.Ppy}, {"skew", params.Skew}} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return NewCalibrationError("non-finite %s = %v", v.name, v.val)
		}
	}
	if params.Fx <= 0 {
		return NewCalibrationError("invalid focal length Fx = %#v", params.Fx)
	}
	if params.Fy <= 0 {
		return NewCalibrationError("invalid focal length Fy = %#v", params.Fy)
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromMatrix builds intrinsics from a 3x3 camera matrix given row by row.
// The matrix must be upper triangular with a unit bottom-right entry.
func NewPinholeCameraIntrinsicsFromMatrix(rows [][]float64, width, height int) (*PinholeCameraIntrinsics, error) {
	if len(rows) != 3 {
		return nil, NewCalibrationError("camera matrix must have 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 3 {
			return nil, NewCalibrationError("camera matrix row %d must have 3 columns, got %d", i, len(row))
		}
	}
	const eps = 1e-12
	if math.Abs(rows[1][0]) > eps || math.Abs(rows[2][0]) > eps || math.Abs(rows[2][1]) > eps {
		return nil, NewCalibrationError("camera matrix must be upper triangular, got lower entries (%g, %g, %g)",
			rows[1][0], rows[2][0], rows[2][1])
	}
	if math.Abs(rows[2][2]-1) > eps {
		return nil, NewCalibrationError("camera matrix K[2,2] must be 1, got %g", rows[2][2])
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     rows[0][0],
		Skew:   rows[0][1],
		Ppx:    rows[0][2],
		Fy:     rows[1][1],
		Ppy:    rows[1][2],
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// GetCameraMatrix creates a new camera matrix and returns it.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, params.Skew, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// Rows returns the camera matrix as nested rows, the layout used by calibration files.
func (params *PinholeCameraIntrinsics) Rows() [][]float64 {
	return [][]float64{
		{params.Fx, params.Skew, params.Ppx},
		{0, params.Fy, params.Ppy},
		{0, 0, 1},
	}
}

// FocalLength returns the mean of fx and fy. Depth from apparent size uses this single value,
// which is only accurate for cameras with near-square pixels.
func (params *PinholeCameraIntrinsics) FocalLength() float64 {
	return (params.Fx + params.Fy) / 2
}

// PixelToNormalized maps a pixel to normalized image coordinates (the z=1 plane).
func (params *PinholeCameraIntrinsics) PixelToNormalized(u, v float64) (float64, float64) {
	y := (v - params.Ppy) / params.Fy
	x := (u - params.Ppx - params.Skew*y) / params.Fx
	return x, y
}

// NormalizedToPixel maps normalized image coordinates back to a pixel.
func (params *PinholeCameraIntrinsics) NormalizedToPixel(x, y float64) (float64, float64) {
	return params.Fx*x + params.Skew*y + params.Ppx, params.Fy*y + params.Ppy
}

// BackProject returns the ray K⁻¹·[u, v, 1]ᵀ through an ideal (undistorted) pixel. The camera
// matrix is LU factorized; a singular or ill-conditioned matrix is a calibration error.
func (params *PinholeCameraIntrinsics) BackProject(pixel r2.Point) (r3.Vector, error) {
	if err := params.CheckValid(); err != nil {
		return r3.Vector{}, err
	}
	var lu mat.LU
	lu.Factorize(params.GetCameraMatrix())
	if cond := lu.Cond(); lu.Det() == 0 || math.IsInf(cond, 0) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return r3.Vector{}, NewCalibrationError("camera matrix is singular (condition number %g)", cond)
	}
	ray := mat.NewVecDense(3, nil)
	if err := lu.SolveVecTo(ray, false, mat.NewVecDense(3, []float64{pixel.X, pixel.Y, 1})); err != nil {
		return r3.Vector{}, NewCalibrationError("cannot invert camera matrix: %v", err)
	}
	return r3.Vector{X: ray.AtVec(0), Y: ray.AtVec(1), Z: ray.AtVec(2)}, nil
}

// PointToPixel projects a 3D point to a pixel in an ideal (distortion free) image plane.
func (params *PinholeCameraIntrinsics) PointToPixel(pt r3.Vector) (r2.Point, error) {
	if pt.Z <= 0 || math.IsNaN(pt.Z) {
		return r2.Point{}, errors.Errorf("cannot project point with depth %v", pt.Z)
	}
	u, v := params.NormalizedToPixel(pt.X/pt.Z, pt.Y/pt.Z)
	return r2.Point{X: u, Y: v}, nil
}
