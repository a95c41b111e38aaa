package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// categoryCore filters entries by the category their logger is named after.
// The innermost matching name segment wins, so "kernel.validation" uses the
// validation level.
type categoryCore struct {
	zapcore.Core
	def    zapcore.Level
	levels map[string]zapcore.Level
	floor  zapcore.Level
}

// NewCategoryCore wraps core with per-category minimum levels. Loggers whose
// name carries no configured category use def.
func NewCategoryCore(core zapcore.Core, def zapcore.Level, levels map[string]zapcore.Level) zapcore.Core {
	return &categoryCore{
		Core:   core,
		def:    def,
		levels: levels,
		floor:  minLevel(def, levels),
	}
}

func (c *categoryCore) levelFor(name string) zapcore.Level {
	if len(c.levels) == 0 || name == "" {
		return c.def
	}
	segments := strings.Split(name, ".")
	for i := len(segments) - 1; i >= 0; i-- {
		if l, ok := c.levels[segments[i]]; ok {
			return l
		}
	}
	return c.def
}

func (c *categoryCore) Enabled(l zapcore.Level) bool {
	return l >= c.floor && c.Core.Enabled(l)
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{
		Core:   c.Core.With(fields),
		def:    c.def,
		levels: c.levels,
		floor:  c.floor,
	}
}

func (c *categoryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < c.levelFor(ent.LoggerName) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

// Func receives one log line: the logger's category, the level and the
// message with its fields rendered.
type Func func(category string, level zapcore.Level, message string)

type callbackCore struct {
	zapcore.LevelEnabler
	fn     Func
	enc    zapcore.Encoder
	fields []zapcore.Field
}

// NewCallbackCore returns a core that hands every entry at or above enab to
// fn. Combine it with other cores through zapcore.NewTee.
func NewCallbackCore(fn Func, enab zapcore.LevelEnabler) zapcore.Core {
	return &callbackCore{
		LevelEnabler: enab,
		fn:           fn,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:       "msg",
			ConsoleSeparator: " ",
		}),
	}
}

func (c *callbackCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *callbackCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *callbackCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field(nil), c.fields...), fields...)
	buf, err := c.enc.EncodeEntry(ent, all)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	category := ent.LoggerName
	if i := strings.LastIndexByte(category, '.'); i >= 0 {
		category = category[i+1:]
	}
	if category == "" {
		category = CategoryAll
	}
	c.fn(category, ent.Level, msg)
	return nil
}

func (c *callbackCore) Sync() error {
	return nil
}
