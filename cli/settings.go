package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sphereloc/calibration"
	"go.viam.com/sphereloc/config"
	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/transform"
)

// settings are the service settings a command runs with: the config file if one was given, with
// command line flags applied on top.
type settings struct {
	calibrationFile string
	captureWidth    int
	captureHeight   int
	diameter        float64
	units           string
	undistort       transform.UndistortOptions
	storePath       string
}

func loadSettings(c *cli.Context) (*settings, error) {
	s := &settings{
		units:     config.Default().Object.Units,
		undistort: transform.DefaultUndistortOptions(),
	}
	if path := c.String(generalFlagConfig); path != "" {
		cfg, err := config.Read(path)
		if err != nil {
			return nil, err
		}
		s.calibrationFile = cfg.Calibration.File
		s.captureWidth = cfg.Calibration.Capture.Width
		s.captureHeight = cfg.Calibration.Capture.Height
		s.diameter = cfg.Object.Diameter
		s.units = cfg.Object.Units
		s.undistort = cfg.Undistortion
		if !cfg.Store.Disabled {
			s.storePath = cfg.Store.Path
		}
	}
	if c.IsSet(generalFlagCalibration) {
		// a calibration given directly is used at its own resolution
		s.calibrationFile = c.String(generalFlagCalibration)
		s.captureWidth, s.captureHeight = 0, 0
	}
	if c.IsSet(generalFlagDiameter) {
		s.diameter = c.Float64(generalFlagDiameter)
	}
	if c.IsSet(generalFlagUnits) {
		s.units = c.String(generalFlagUnits)
	}
	return s, nil
}

func (s *settings) calibration() (*calibration.Calibration, error) {
	if s.calibrationFile == "" {
		return nil, errors.Errorf("no calibration file; pass --%s or --%s", generalFlagCalibration, generalFlagConfig)
	}
	return calibration.Load(s.calibrationFile, s.captureWidth, s.captureHeight)
}

func (s *settings) engine(logger logging.Logger) (*localize.Engine, error) {
	cal, err := s.calibration()
	if err != nil {
		return nil, err
	}
	provider, err := calibration.NewProvider(cal)
	if err != nil {
		return nil, err
	}
	if s.diameter == 0 {
		return nil, errors.Errorf("no sphere diameter; pass --%s or --%s", generalFlagDiameter, generalFlagConfig)
	}
	return localize.NewEngine(provider, s.diameter, s.units, localize.Options{Undistort: s.undistort}, logger)
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(generalFlagDebug) {
		return logging.NewDebugLogger("sphereloc")
	}
	return logging.NewBlankLogger("sphereloc")
}

// imageSize reads the optional frame size flags into the raw request form.
func imageSize(c *cli.Context, raw map[string]interface{}) {
	if c.IsSet(localizeFlagImageWidth) {
		raw[localize.FieldImageWidth] = c.Int(localizeFlagImageWidth)
	}
	if c.IsSet(localizeFlagImageHeight) {
		raw[localize.FieldImageHeight] = c.Int(localizeFlagImageHeight)
	}
}
