// Package config defines the localization service configuration and how it is read.
package config

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/transform"
)

// Config is the whole service configuration.
type Config struct {
	Object       ObjectConfig               `json:"object"`
	Calibration  CalibrationConfig          `json:"calibration"`
	Undistortion transform.UndistortOptions `json:"undistortion"`
	Store        StoreConfig                `json:"store"`
	Web          WebConfig                  `json:"web"`
	Log          LogConfig                  `json:"log"`

	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`
}

// ObjectConfig is the physical size of the sphere being localized. Localized coordinates are
// reported in Units.
type ObjectConfig struct {
	Name     string  `json:"name"`
	Diameter float64 `json:"diameter"`
	Units    string  `json:"units"`
}

// CalibrationConfig locates the camera calibration and the resolution frames are captured at.
type CalibrationConfig struct {
	File    string        `json:"file"`
	Capture CaptureConfig `json:"capture"`
	Watch   bool          `json:"watch"`
}

// CaptureConfig is a capture resolution. Zero means the calibration's reference resolution.
type CaptureConfig struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// StoreConfig configures the localization audit log. Records older than Retention are pruned
// every PruneInterval; a zero Retention keeps everything.
type StoreConfig struct {
	Path          string        `json:"path"`
	Disabled      bool          `json:"disabled"`
	Retention     time.Duration `json:"retention"`
	PruneInterval time.Duration `json:"prune_interval"`
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Port               int           `json:"port"`
	UploadDir          string        `json:"upload_dir"`
	ShutdownTimeout    time.Duration `json:"shutdown_timeout"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
}

// LogConfig sets the log level and output format. When File is set, logs are also written there
// as JSON lines, rotated once the file reaches MaxSizeMB.
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Object:       ObjectConfig{Name: "sphere", Units: "cm"},
		Undistortion: transform.DefaultUndistortOptions(),
		Store:        StoreConfig{Path: "sphereloc.db", PruneInterval: time.Hour},
		Web: WebConfig{
			Port:            8080,
			UploadDir:       "captured_images",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: LogFormatConsole, MaxSizeMB: 100, MaxBackups: 3},
	}
}

// Validate returns the first problem found, qualified by its path in the config.
func (c *Config) Validate() error {
	if err := c.Object.Validate("object"); err != nil {
		return err
	}
	if err := c.Calibration.Validate("calibration"); err != nil {
		return err
	}
	if err := c.Undistortion.Validate(); err != nil {
		return utils.NewConfigValidationError("undistortion", err)
	}
	if err := c.Store.Validate("store"); err != nil {
		return err
	}
	if err := c.Web.Validate("web"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// Validate checks the log settings.
func (c *LogConfig) Validate(path string) error {
	if _, err := logging.LevelFromString(c.Level); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.Format != LogFormatConsole && c.Format != LogFormatJSON {
		return utils.NewConfigValidationError(path, errors.Errorf("unknown format %q", c.Format))
	}
	if c.File != "" && (c.MaxSizeMB <= 0 || c.MaxBackups < 0) {
		return utils.NewConfigValidationError(path,
			errors.Errorf("max_size_mb must be positive and max_backups not negative, got %d and %d", c.MaxSizeMB, c.MaxBackups))
	}
	return nil
}

// Validate checks the object size.
func (c *ObjectConfig) Validate(path string) error {
	if c.Diameter == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "diameter")
	}
	if c.Diameter < 0 || math.IsNaN(c.Diameter) || math.IsInf(c.Diameter, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("diameter must be a positive number, got %v", c.Diameter))
	}
	if c.Units == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "units")
	}
	return nil
}

// Validate checks the calibration location and capture resolution.
func (c *CalibrationConfig) Validate(path string) error {
	if c.File == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "file")
	}
	w, h := c.Capture.Width, c.Capture.Height
	if w == 0 && h == 0 {
		return nil
	}
	if w <= 0 || h <= 0 {
		return utils.NewConfigValidationError(path+".capture",
			errors.Errorf("width_px and height_px must both be positive or both omitted, got (%d, %d)", w, h))
	}
	return nil
}

// Validate checks the store settings.
func (c *StoreConfig) Validate(path string) error {
	if c.Disabled {
		return nil
	}
	if c.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	if c.Retention < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("retention must not be negative, got %s", c.Retention))
	}
	if c.Retention > 0 && c.PruneInterval <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("prune_interval must be positive, got %s", c.PruneInterval))
	}
	return nil
}

// Validate checks the HTTP server settings.
func (c *WebConfig) Validate(path string) error {
	if c.Port < 0 || c.Port > math.MaxUint16 {
		return utils.NewConfigValidationError(path, errors.Errorf("invalid port %d", c.Port))
	}
	if c.UploadDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "upload_dir")
	}
	if c.ShutdownTimeout < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout))
	}
	return nil
}
