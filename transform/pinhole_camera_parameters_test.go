package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func phoneIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: 3000, Height: 4000, Fx: 3000, Fy: 3000, Ppx: 1500, Ppy: 1900}
}

func TestNewPinholeCameraIntrinsicsFromMatrix(t *testing.T) {
	k, err := NewPinholeCameraIntrinsicsFromMatrix([][]float64{
		{3000, 0.5, 1500},
		{0, 3010, 1900},
		{0, 0, 1},
	}, 3000, 4000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k.Fx, test.ShouldEqual, 3000)
	test.That(t, k.Fy, test.ShouldEqual, 3010)
	test.That(t, k.Skew, test.ShouldEqual, 0.5)
	test.That(t, k.Ppx, test.ShouldEqual, 1500)
	test.That(t, k.Ppy, test.ShouldEqual, 1900)
	test.That(t, k.Rows(), test.ShouldResemble, [][]float64{{3000, 0.5, 1500}, {0, 3010, 1900}, {0, 0, 1}})

	for _, tc := range []struct {
		name string
		rows [][]float64
		msg  string
	}{
		{"two rows", [][]float64{{1, 0, 0}, {0, 1, 0}}, "3 rows"},
		{"short row", [][]float64{{1, 0, 0}, {0, 1}, {0, 0, 1}}, "row 1"},
		{"lower entry", [][]float64{{3000, 0, 1500}, {2, 3000, 1900}, {0, 0, 1}}, "upper triangular"},
		{"homogeneous scale", [][]float64{{3000, 0, 1500}, {0, 3000, 1900}, {0, 0, 2}}, "K[2,2]"},
		{"zero fx", [][]float64{{0, 0, 1500}, {0, 3000, 1900}, {0, 0, 1}}, "Fx"},
		{"negative fy", [][]float64{{3000, 0, 1500}, {0, -3000, 1900}, {0, 0, 1}}, "Fy"},
		{"nan ppx", [][]float64{{3000, 0, math.NaN()}, {0, 3000, 1900}, {0, 0, 1}}, "non-finite ppx"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPinholeCameraIntrinsicsFromMatrix(tc.rows, 3000, 4000)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}

	_, err = NewPinholeCameraIntrinsicsFromMatrix([][]float64{{3000, 0, 1500}, {0, 3000, 1900}, {0, 0, 1}}, 0, 4000)
	test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
}

func TestGetCameraMatrix(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.GetCameraMatrix(), test.ShouldBeNil)

	k := phoneIntrinsics().GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, 3000)
	test.That(t, k.At(1, 1), test.ShouldEqual, 3000)
	test.That(t, k.At(0, 2), test.ShouldEqual, 1500)
	test.That(t, k.At(1, 2), test.ShouldEqual, 1900)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1)
	test.That(t, k.At(1, 0), test.ShouldEqual, 0)
}

func TestBackProject(t *testing.T) {
	k := phoneIntrinsics()

	ray, err := k.BackProject(r2.Point{X: 1500, Y: 1900})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ray.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, ray.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, ray.Z, test.ShouldAlmostEqual, 1, 1e-12)

	ray, err = k.BackProject(r2.Point{X: 2100, Y: 1300})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ray.X, test.ShouldAlmostEqual, 0.2, 1e-12)
	test.That(t, ray.Y, test.ShouldAlmostEqual, -0.2, 1e-12)
	test.That(t, ray.Z, test.ShouldAlmostEqual, 1, 1e-12)

	t.Run("skew", func(t *testing.T) {
		skewed := phoneIntrinsics()
		skewed.Skew = 30
		pt := r3.Vector{X: 0.3, Y: -0.1, Z: 1}
		px, err := skewed.PointToPixel(pt)
		test.That(t, err, test.ShouldBeNil)
		ray, err := skewed.BackProject(px)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ray.X, test.ShouldAlmostEqual, pt.X, 1e-12)
		test.That(t, ray.Y, test.ShouldAlmostEqual, pt.Y, 1e-12)
	})

	t.Run("singular", func(t *testing.T) {
		singular := phoneIntrinsics()
		singular.Fx = 0
		_, err := singular.BackProject(r2.Point{X: 1500, Y: 1900})
		test.That(t, errors.Is(err, ErrCalibration), test.ShouldBeTrue)
	})
}

func TestPixelNormalizedRoundTrip(t *testing.T) {
	k := phoneIntrinsics()
	k.Skew = 12
	for _, px := range []r2.Point{{X: 0, Y: 0}, {X: 1500, Y: 1900}, {X: 2999, Y: 3999}, {X: 123.25, Y: 3456.5}} {
		x, y := k.PixelToNormalized(px.X, px.Y)
		u, v := k.NormalizedToPixel(x, y)
		test.That(t, u, test.ShouldAlmostEqual, px.X, 1e-9)
		test.That(t, v, test.ShouldAlmostEqual, px.Y, 1e-9)
	}
}

func TestPointToPixel(t *testing.T) {
	k := phoneIntrinsics()
	px, err := k.PointToPixel(r3.Vector{X: 10, Y: -5, Z: 100})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, px.X, test.ShouldAlmostEqual, 1800)
	test.That(t, px.Y, test.ShouldAlmostEqual, 1750)

	_, err = k.PointToPixel(r3.Vector{X: 1, Y: 1, Z: 0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFocalLength(t *testing.T) {
	k := phoneIntrinsics()
	k.Fy = 3100
	test.That(t, k.FocalLength(), test.ShouldEqual, 3050)
}
