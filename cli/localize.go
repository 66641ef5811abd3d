package cli

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/transform"
)

type localizeOutput struct {
	Point             localize.LocalizedPoint `json:"point"`
	Units             string                  `json:"units"`
	UndistortedCenter [2]float64              `json:"undistorted_center"`
	DepthScale        float64                 `json:"depth_scale"`
	FocalLength       float64                 `json:"focal_length"`
}

// LocalizeAction localizes the observation given by flags.
func LocalizeAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	engine, err := s.engine(newLogger(c))
	if err != nil {
		return err
	}

	raw := map[string]interface{}{
		localize.FieldCenterX:  c.Float64(localizeFlagCenterX),
		localize.FieldCenterY:  c.Float64(localizeFlagCenterY),
		localize.FieldDiameter: c.Float64(localizeFlagDiameterPx),
	}
	imageSize(c, raw)
	req, err := localize.ParseRequest(raw)
	if err != nil {
		return err
	}
	res, err := engine.Localize(req)
	if err != nil {
		return err
	}

	if c.Bool(localizeFlagJSON) {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(localizeOutput{
			Point:             res.Point,
			Units:             engine.Units(),
			UndistortedCenter: [2]float64{res.UndistortedCenter.X, res.UndistortedCenter.Y},
			DepthScale:        res.DepthScale,
			FocalLength:       res.FocalLength,
		})
	}
	printf(c, "x=%.4f y=%.4f z=%.4f %s", res.Point.X, res.Point.Y, res.Point.Z, engine.Units())
	return nil
}

// ScaleAction prints the reference and scaled camera matrices.
func ScaleAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	cal, err := s.calibration()
	if err != nil {
		return err
	}
	width, height := c.Int(scaleFlagWidth), c.Int(scaleFlagHeight)
	ref := cal.Reference()
	scaled, err := transform.ScaleIntrinsics(ref.PinholeCameraIntrinsics, ref.Width, ref.Height, width, height)
	if err != nil {
		return err
	}
	scale, err := transform.NewResizeScale(ref.Width, ref.Height, width, height)
	if err != nil {
		return err
	}

	printf(c, "scale: sx=%.6f sy=%.6f", scale.Sx, scale.Sy)
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"", fmt.Sprintf("reference %dx%d", ref.Width, ref.Height), fmt.Sprintf("scaled %dx%d", width, height)})
	t.AppendRows([]table.Row{
		{"fx", ref.Fx, scaled.Fx},
		{"fy", ref.Fy, scaled.Fy},
		{"skew", ref.Skew, scaled.Skew},
		{"ppx", ref.Ppx, scaled.Ppx},
		{"ppy", ref.Ppy, scaled.Ppy},
	})
	t.Render()
	return nil
}

// UndistortAction removes lens distortion from one pixel.
func UndistortAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	cal, err := s.calibration()
	if err != nil {
		return err
	}
	width, height := c.Int(localizeFlagImageWidth), c.Int(localizeFlagImageHeight)
	if (width == 0) != (height == 0) {
		return errors.Errorf("--%s and --%s must be given together", localizeFlagImageWidth, localizeFlagImageHeight)
	}
	model, err := cal.ForCapture(width, height)
	if err != nil {
		return err
	}
	pixel := r2.Point{X: c.Float64(undistortFlagX), Y: c.Float64(undistortFlagY)}
	undistorted, err := model.UndistortPixel(pixel, s.undistort)
	if err != nil {
		return err
	}
	xn, yn := model.PixelToNormalized(undistorted.X, undistorted.Y)
	printf(c, "pixel (%.4f, %.4f) -> (%.4f, %.4f), normalized (%.6f, %.6f)",
		pixel.X, pixel.Y, undistorted.X, undistorted.Y, xn, yn)
	return nil
}

func printf(c *cli.Context, format string, a ...interface{}) {
	fmt.Fprintf(c.App.Writer, format+"\n", a...)
}
