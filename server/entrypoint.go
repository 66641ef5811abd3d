// Package server implements the entry point for running the localization web server.
package server

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/sphereloc/calibration"
	"go.viam.com/sphereloc/config"
	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/store"
	"go.viam.com/sphereloc/web"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string            `flag:"0,required,usage=service config file"`
	Port       utils.NetPortFlag `flag:"port,usage=port to listen on; overrides the config"`
	Debug      bool              `flag:"debug,usage=enable debug logging"`
}

// RunServer is an entry point to starting the web server that can be called by main in a code
// sample.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Read(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	if cfg.Log.Format == config.LogFormatJSON {
		logger = logging.NewJSONLogger("sphereloc")
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	} else {
		level, err := logging.LevelFromString(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if argsParsed.Port != 0 {
		cfg.Web.Port = int(argsParsed.Port)
	}
	if cfg.Log.File != "" {
		var closeFile func() error
		logger, closeFile = logging.WithRotatingFile(logger, logging.RotatingFile{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		defer func() {
			err = multierr.Combine(err, closeFile())
		}()
	}

	return serveWeb(ctx, cfg, logger)
}

func serveWeb(ctx context.Context, cfg *config.Config, logger logging.Logger) (err error) {
	capW, capH := cfg.Calibration.Capture.Width, cfg.Calibration.Capture.Height
	cal, err := calibration.Load(cfg.Calibration.File, capW, capH)
	if err != nil {
		return err
	}
	provider, err := calibration.NewProvider(cal)
	if err != nil {
		return err
	}
	refW, refH := cal.ReferenceResolution()
	logger.Infow("calibration loaded", "path", cal.Source(), "reference_width", refW, "reference_height", refH)

	if cfg.Calibration.Watch {
		watcher, watchErr := calibration.NewWatcher(provider, cfg.Calibration.File, capW, capH, logger.Sublogger("calibration"))
		if watchErr != nil {
			return watchErr
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	engine, err := localize.NewEngine(
		provider,
		cfg.Object.Diameter,
		cfg.Object.Units,
		localize.Options{Undistort: cfg.Undistortion},
		logger.Sublogger("localize"),
	)
	if err != nil {
		return errors.Wrap(err, "cannot create localization engine")
	}

	// web.New wants an untyped nil when nothing is recorded.
	var sink web.Store
	if !cfg.Store.Disabled {
		st, openErr := store.Open(ctx, cfg.Store.Path, logger.Sublogger("store"))
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = multierr.Combine(err, st.Close())
		}()
		if cfg.Store.Retention > 0 {
			retention, retentionErr := store.StartRetention(st, cfg.Store.Retention, cfg.Store.PruneInterval, logger.Sublogger("retention"))
			if retentionErr != nil {
				return retentionErr
			}
			defer func() {
				err = multierr.Combine(err, retention.Close())
			}()
		}
		sink = st
	}

	srv, err := web.New(engine, provider, sink, web.Options{
		Port:               cfg.Web.Port,
		UploadDir:          cfg.Web.UploadDir,
		ShutdownTimeout:    cfg.Web.ShutdownTimeout,
		CORSAllowedOrigins: cfg.Web.CORSAllowedOrigins,
	}, logger.Sublogger("web"))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
