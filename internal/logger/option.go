package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore overrides the level gate of a wrapped zapcore.Core without
// touching its encoder or output.
type leveledCore struct {
	zapcore.Core

	// level replaces the wrapped core's own threshold.
	level zapcore.Level
}

// Enabled consults the override level instead of the wrapped core's.
func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check registers the core on the checked entry when the override level
// admits the entry.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the override level on the derived core.
//
//nolint:ireturn,nolintlint // zapcore.Core is the contract zap expects.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel derives a logger whose level differs from its parent's, leaving
// the shared default level alone.
//
//nolint:ireturn,nolintlint // zap.Option is the contract zap expects.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &leveledCore{core, lvl}
		})
}
