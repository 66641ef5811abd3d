package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func wideAngleDistortion() *BrownConrady {
	return &BrownConrady{RadialK1: -0.28, RadialK2: 0.07, TangentialP1: 2e-4, TangentialP2: -1e-4}
}

func TestNewBrownConrady(t *testing.T) {
	bc, err := NewBrownConrady([]float64{0.1, 0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, 0.2, 0, 0, 0})

	_, err = NewBrownConrady([]float64{1, 2, 3, 4, 5, 6})
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "too long")

	_, err = NewBrownConrady([]float64{0, math.Inf(1)})
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)

	var nilBC *BrownConrady
	test.That(t, nilBC.Parameters(), test.ShouldResemble, []float64{})
	test.That(t, nilBC.IsZero(), test.ShouldBeTrue)
	test.That(t, nilBC.CheckValid(), test.ShouldNotBeNil)
}

func TestNewBrownConradyFromOpenCV(t *testing.T) {
	bc, err := NewBrownConradyFromOpenCV([]float64{0.11, -0.21, -0.015, -0.003, 0.19})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.RadialK1, test.ShouldEqual, 0.11)
	test.That(t, bc.RadialK2, test.ShouldEqual, -0.21)
	test.That(t, bc.TangentialP1, test.ShouldEqual, -0.015)
	test.That(t, bc.TangentialP2, test.ShouldEqual, -0.003)
	test.That(t, bc.RadialK3, test.ShouldEqual, 0.19)

	bc, err = NewBrownConradyFromOpenCV([]float64{0.11, -0.21, -0.015, -0.003})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.RadialK3, test.ShouldEqual, 0)
	test.That(t, bc.TangentialP2, test.ShouldEqual, -0.003)
}

func TestUndistortOptionsValidate(t *testing.T) {
	test.That(t, DefaultUndistortOptions().Validate(), test.ShouldBeNil)
	test.That(t, UndistortOptions{MaxIterations: 0, Tolerance: 1e-10}.Validate(), test.ShouldNotBeNil)
	test.That(t, UndistortOptions{MaxIterations: 5, Tolerance: 0}.Validate(), test.ShouldNotBeNil)
	test.That(t, UndistortOptions{MaxIterations: 5, Tolerance: math.NaN()}.Validate(), test.ShouldNotBeNil)
	test.That(t, UndistortOptions{MaxIterations: 5, Tolerance: math.Inf(1)}.Validate(), test.ShouldNotBeNil)
}

func TestUndistortInvertsDistort(t *testing.T) {
	bc := wideAngleDistortion()
	opts := DefaultUndistortOptions()
	for _, pt := range []r2.Point{{X: 0, Y: 0}, {X: 0.1, Y: 0.05}, {X: -0.3, Y: 0.2}, {X: 0.45, Y: -0.4}, {X: -0.5, Y: -0.3}} {
		xd, yd := bc.Distort(pt.X, pt.Y)
		xu, yu, err := bc.Undistort(xd, yd, opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, xu, test.ShouldAlmostEqual, pt.X, 1e-9)
		test.That(t, yu, test.ShouldAlmostEqual, pt.Y, 1e-9)
	}
}

func TestUndistortZeroDistortion(t *testing.T) {
	xu, yu, err := (&BrownConrady{}).Undistort(0.7, -0.2, DefaultUndistortOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, xu, test.ShouldEqual, 0.7)
	test.That(t, yu, test.ShouldEqual, -0.2)
}

func TestUndistortDoesNotConverge(t *testing.T) {
	// x(1 - 0.5x²) never reaches 1, and Newton started at 1 cycles between 1 and 0.
	bc := &BrownConrady{RadialK1: -0.5}
	_, _, err := bc.Undistort(1, 0, DefaultUndistortOptions())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeFalse)

	var geomErr *GeometryError
	test.That(t, errors.As(err, &geomErr), test.ShouldBeTrue)
	test.That(t, geomErr.Iterations, test.ShouldEqual, 20)
	test.That(t, geomErr.Reason, test.ShouldEqual, "did not converge")
	test.That(t, geomErr.Residual, test.ShouldAlmostEqual, 0.5)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot undistort point (1, 0)")

	_, _, err = bc.Undistort(1, 0, UndistortOptions{MaxIterations: 3, Tolerance: 1e-10})
	test.That(t, errors.As(err, &geomErr), test.ShouldBeTrue)
	test.That(t, geomErr.Iterations, test.ShouldEqual, 3)
}

func TestUndistortPixel(t *testing.T) {
	k := phoneIntrinsics()
	opts := DefaultUndistortOptions()

	t.Run("zero distortion is the identity", func(t *testing.T) {
		for _, px := range []r2.Point{{X: 0, Y: 0}, {X: 1500, Y: 1900}, {X: 2345.5, Y: 117.25}} {
			out, err := UndistortPixel(px, k, &BrownConrady{}, opts)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out, test.ShouldResemble, px)

			out, err = UndistortPixel(px, k, nil, opts)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out, test.ShouldResemble, px)
		}
	})

	t.Run("round trip through the lens", func(t *testing.T) {
		model := &PinholeCameraModel{PinholeCameraIntrinsics: k, Distortion: wideAngleDistortion()}
		for _, ideal := range []r2.Point{{X: 1500, Y: 1900}, {X: 400, Y: 600}, {X: 2700, Y: 3500}, {X: 2100, Y: 1000}} {
			observed := model.DistortPixel(ideal)
			out, err := model.UndistortPixel(observed, opts)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out.X, test.ShouldAlmostEqual, ideal.X, 1e-6)
			test.That(t, out.Y, test.ShouldAlmostEqual, ideal.Y, 1e-6)
		}
	})

	t.Run("principal point is fixed", func(t *testing.T) {
		out, err := UndistortPixel(r2.Point{X: k.Ppx, Y: k.Ppy}, k, &BrownConrady{RadialK1: 0.3, RadialK2: -0.1}, opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.X, test.ShouldAlmostEqual, k.Ppx, 1e-9)
		test.That(t, out.Y, test.ShouldAlmostEqual, k.Ppy, 1e-9)
	})

	t.Run("invalid intrinsics", func(t *testing.T) {
		bad := phoneIntrinsics()
		bad.Fy = -1
		_, err := UndistortPixel(r2.Point{X: 1, Y: 1}, bad, wideAngleDistortion(), opts)
		test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)

		var nilModel *PinholeCameraModel
		_, err = nilModel.UndistortPixel(r2.Point{}, opts)
		test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
	})

	t.Run("unreachable pixel", func(t *testing.T) {
		// normalized (1, 0) for this camera
		_, err := UndistortPixel(r2.Point{X: 4500, Y: 1900}, k, &BrownConrady{RadialK1: -0.5}, opts)
		test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)
	})
}

func TestProjectPointThenBackProject(t *testing.T) {
	model := &PinholeCameraModel{PinholeCameraIntrinsics: phoneIntrinsics(), Distortion: wideAngleDistortion()}
	pt := r3.Vector{X: 120, Y: -80, Z: 900}

	observed, err := model.ProjectPoint(pt)
	test.That(t, err, test.ShouldBeNil)
	ideal, err := model.UndistortPixel(observed, DefaultUndistortOptions())
	test.That(t, err, test.ShouldBeNil)
	ray, err := model.BackProject(ideal)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, ray.X*pt.Z, test.ShouldAlmostEqual, pt.X, 1e-6)
	test.That(t, ray.Y*pt.Z, test.ShouldAlmostEqual, pt.Y, 1e-6)
}

func TestPinholeCameraModelScaledTo(t *testing.T) {
	model := &PinholeCameraModel{PinholeCameraIntrinsics: phoneIntrinsics(), Distortion: wideAngleDistortion()}
	scaled, err := model.ScaledTo(1500, 2000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaled.Fx, test.ShouldAlmostEqual, 1500)
	test.That(t, scaled.Ppy, test.ShouldAlmostEqual, 950)
	test.That(t, scaled.Distortion, test.ShouldResemble, model.Distortion)
	test.That(t, model.Fx, test.ShouldEqual, 3000)

	_, err = model.ScaledTo(0, 2000)
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)

	model.Distortion = &BrownConrady{RadialK1: math.NaN()}
	_, err = model.ScaledTo(1500, 2000)
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
}
