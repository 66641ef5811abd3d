package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFile describes a size rotated log file.
type RotatingFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// WithRotatingFile returns a logger that writes everything logger writes and also appends JSON
// lines to file. The returned closer closes the file. Loggers not created by this package are
// returned unchanged.
func WithRotatingFile(logger Logger, file RotatingFile) (Logger, func() error) {
	imp, ok := logger.(*impl)
	if !ok {
		return logger, func() error { return nil }
	}
	sink := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		Compress:   true,
	}
	encoderConfig := NewLoggerConfig().EncoderConfig
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(sink), zapcore.DebugLevel)
	return newImpl(imp.name, imp.level, zapcore.NewTee(imp.core, fileCore)), sink.Close
}
