package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	*zap.SugaredLogger

	name  string
	level AtomicLevel
	core  zapcore.Core
}

func newImpl(name string, level AtomicLevel, core zapcore.Core) *impl {
	// The level gate sits in front of the shared core so a Sublogger can be quieter or louder
	// than its parent without affecting it.
	sugar := zap.New(levelOverrideCore{Core: core, level: level.zap}, zap.AddCaller()).Sugar()
	if name != "" {
		sugar = sugar.Named(name)
	}
	return &impl{
		SugaredLogger: sugar,
		name:          name,
		level:         level,
		core:          core,
	}
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return newImpl(newName, NewAtomicLevelAt(imp.level.Get()), imp.core)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Get().AsZap()
}

// levelOverrideCore replaces the wrapped core's level decision with the logger's own
// AtomicLevel so SetLevel takes effect immediately.
type levelOverrideCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c levelOverrideCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c levelOverrideCore) With(fields []zapcore.Field) zapcore.Core {
	return levelOverrideCore{Core: c.Core.With(fields), level: c.level}
}

func (c levelOverrideCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return ce.AddCore(entry, c)
}

func (c levelOverrideCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, fields)
}
