package transform

import (
	"math"

	"github.com/pkg/errors"
)

// BrownConrady is the radial (k1, k2, k3) and tangential (p1, p2) lens distortion model. Coefficients
// act on normalized image coordinates, so they do not depend on image resolution.
//
// The forward model is:
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats ordered k1, k2, k3, p1, p2. Missing trailing values are zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, NewCalibrationError("list of distortion parameters too long, expected max 5, got %d", len(inp))
	}
	vals := make([]float64, 5)
	copy(vals, inp)
	bc := &BrownConrady{vals[0], vals[1], vals[2], vals[3], vals[4]}
	if err := bc.CheckValid(); err != nil {
		return nil, err
	}
	return bc, nil
}

// NewBrownConradyFromOpenCV takes coefficients in OpenCV's order k1, k2, p1, p2, k3.
func NewBrownConradyFromOpenCV(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, NewCalibrationError("list of distortion parameters too long, expected max 5, got %d", len(inp))
	}
	vals := make([]float64, 5)
	copy(vals, inp)
	return NewBrownConrady([]float64{vals[0], vals[1], vals[4], vals[2], vals[3]})
}

// CheckValid checks that every coefficient is finite.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return NewCalibrationError("distortion parameters not provided")
	}
	for i, v := range bc.Parameters() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewCalibrationError("distortion parameter %d is not finite: %v", i, v)
		}
	}
	return nil
}

// Parameters returns the coefficients ordered k1, k2, k3, p1, p2.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// IsZero returns whether the model is the identity.
func (bc *BrownConrady) IsZero() bool {
	return bc == nil || *bc == BrownConrady{}
}

// Distort applies the forward model to undistorted normalized coordinates.
func (bc *BrownConrady) Distort(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
	tanDistX := 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
	tanDistY := 2.0*bc.TangentialP2*x*y + bc.TangentialP1*(r2+2.0*y*y)
	return x*radDist + tanDistX, y*radDist + tanDistY
}

// UndistortOptions bounds the Newton-Raphson inversion of the forward model.
type UndistortOptions struct {
	// MaxIterations caps the number of Newton steps.
	MaxIterations int `json:"max_iterations"`
	// Tolerance is the accepted residual, in normalized image units.
	Tolerance float64 `json:"tolerance"`
}

// DefaultUndistortOptions returns the iteration cap and tolerance used when none are configured.
func DefaultUndistortOptions() UndistortOptions {
	return UndistortOptions{MaxIterations: 20, Tolerance: 1e-10}
}

// Validate checks that the options describe a bounded, reachable convergence criterion.
func (opts UndistortOptions) Validate() error {
	if opts.MaxIterations <= 0 {
		return errors.Errorf("max_iterations must be positive, got %d", opts.MaxIterations)
	}
	if !(opts.Tolerance > 0) || math.IsInf(opts.Tolerance, 0) {
		return errors.Errorf("tolerance must be a positive finite number, got %v", opts.Tolerance)
	}
	return nil
}

// Undistort inverts the forward model: given distorted normalized coordinates it finds the
// undistorted coordinates that distort onto them, using Newton-Raphson iterations started at the
// distorted point. A GeometryError is returned when the loop does not converge within the
// iteration cap, the Jacobian becomes singular, or an iterate stops being finite.
func (bc *BrownConrady) Undistort(xd, yd float64, opts UndistortOptions) (float64, float64, error) {
	if err := opts.Validate(); err != nil {
		return 0, 0, err
	}
	if bc.IsZero() {
		return xd, yd, nil
	}

	xu, yu := xd, yd
	residual := math.Inf(1)
	for i := 0; i < opts.MaxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2

		xdEst, ydEst := bc.Distort(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		residual = math.Sqrt(errX*errX + errY*errY)
		if math.IsNaN(residual) || math.IsInf(residual, 0) {
			return 0, 0, &GeometryError{X: xd, Y: yd, Iterations: i, Residual: residual, Reason: "iterate is not finite"}
		}
		if residual < opts.Tolerance {
			return xu, yu, nil
		}

		// Jacobian of the forward distortion function
		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]]
		radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
		dRad := bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4
		dRadDistDxu := 2.0 * xu * dRad
		dRadDistDyu := 2.0 * yu * dRad

		dxdDxu := radDist + xu*dRadDistDxu + 2.0*bc.TangentialP1*yu + 6.0*bc.TangentialP2*xu
		dxdDyu := xu*dRadDistDyu + 2.0*bc.TangentialP1*xu + 2.0*bc.TangentialP2*yu
		dydDxu := yu*dRadDistDxu + 2.0*bc.TangentialP2*yu + 2.0*bc.TangentialP1*xu
		dydDyu := radDist + yu*dRadDistDyu + 2.0*bc.TangentialP2*xu + 6.0*bc.TangentialP1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 || math.IsNaN(det) {
			return 0, 0, &GeometryError{X: xd, Y: yd, Iterations: i, Residual: residual, Reason: "singular distortion jacobian"}
		}

		// [xu, yu] -= J^-1 * [errX, errY]
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}

	xdEst, ydEst := bc.Distort(xu, yu)
	residual = math.Hypot(xdEst-xd, ydEst-yd)
	if residual < opts.Tolerance {
		return xu, yu, nil
	}
	return 0, 0, &GeometryError{X: xd, Y: yd, Iterations: opts.MaxIterations, Residual: residual, Reason: "did not converge"}
}
