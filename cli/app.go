// Package cli contains the sphereloc command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig      = "config"
	generalFlagCalibration = "calibration"
	generalFlagDiameter    = "diameter"
	generalFlagUnits       = "units"
	generalFlagDebug       = "debug"

	localizeFlagCenterX     = "center-x"
	localizeFlagCenterY     = "center-y"
	localizeFlagDiameterPx  = "diameter-px"
	localizeFlagImageWidth  = "image-width"
	localizeFlagImageHeight = "image-height"
	localizeFlagJSON        = "json"

	scaleFlagWidth  = "width"
	scaleFlagHeight = "height"

	undistortFlagX = "x"
	undistortFlagY = "y"

	batchFlagRecord = "record"
	batchFlagPlot   = "plot"

	historyFlagDB    = "db"
	historyFlagLimit = "limit"
)

// NewApp returns the sphereloc command line app writing to out and errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	imageSizeFlags := []cli.Flag{
		&cli.IntFlag{
			Name:  localizeFlagImageWidth,
			Usage: "width of the frame the pixels were measured in; defaults to the capture resolution",
		},
		&cli.IntFlag{
			Name:  localizeFlagImageHeight,
			Usage: "height of the frame the pixels were measured in; defaults to the capture resolution",
		},
	}

	return &cli.App{
		Name:            "sphereloc",
		Usage:           "locate a sphere of known size from a single camera image",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load object, calibration and store settings from service config `FILE`",
			},
			&cli.StringFlag{
				Name:  generalFlagCalibration,
				Usage: "camera calibration `FILE`; overrides the config",
			},
			&cli.Float64Flag{
				Name:  generalFlagDiameter,
				Usage: "true diameter of the sphere; overrides the config",
			},
			&cli.StringFlag{
				Name:  generalFlagUnits,
				Usage: "units of the true diameter; overrides the config",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "localize",
				Usage: "localize one observation",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:     localizeFlagCenterX,
						Required: true,
						Usage:    "x pixel coordinate of the sphere center",
					},
					&cli.Float64Flag{
						Name:     localizeFlagCenterY,
						Required: true,
						Usage:    "y pixel coordinate of the sphere center",
					},
					&cli.Float64Flag{
						Name:     localizeFlagDiameterPx,
						Required: true,
						Usage:    "apparent diameter of the sphere in pixels",
					},
					&cli.BoolFlag{
						Name:  localizeFlagJSON,
						Usage: "print the result as JSON",
					},
				}, imageSizeFlags...),
				Action: LocalizeAction,
			},
			{
				Name:  "scale",
				Usage: "print the camera matrix scaled to another resolution",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     scaleFlagWidth,
						Required: true,
						Usage:    "target width in pixels",
					},
					&cli.IntFlag{
						Name:     scaleFlagHeight,
						Required: true,
						Usage:    "target height in pixels",
					},
				},
				Action: ScaleAction,
			},
			{
				Name:  "undistort",
				Usage: "remove lens distortion from a pixel",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:     undistortFlagX,
						Required: true,
						Usage:    "x pixel coordinate",
					},
					&cli.Float64Flag{
						Name:     undistortFlagY,
						Required: true,
						Usage:    "y pixel coordinate",
					},
				}, imageSizeFlags...),
				Action: UndistortAction,
			},
			{
				Name:      "batch",
				Usage:     "localize every observation in a CSV file",
				ArgsUsage: "<file.csv|->",
				Description: "The CSV must have a header naming the columns centerX, centerY and diameter,\n" +
					"and may add imageWidth and imageHeight. Use - to read from stdin.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  batchFlagRecord,
						Usage: "record successful localizations in the store",
					},
					&cli.StringFlag{
						Name:  batchFlagPlot,
						Usage: "save a histogram of depths to `FILE` (png, svg or pdf)",
					},
				},
				Action: BatchAction,
			},
			{
				Name:  "history",
				Usage: "list recorded localizations, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  historyFlagDB,
						Usage: "store database `FILE`; defaults to the config's store path",
					},
					&cli.IntFlag{
						Name:  historyFlagLimit,
						Value: 20,
						Usage: "number of localizations to list",
					},
				},
				Action: HistoryAction,
			},
		},
	}
}
