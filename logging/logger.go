package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger interface passed to every activity. It
// mirrors the small, opinionated surface go.viam.com/rdk/logging exposes
// rather than leaking all of zap's SugaredLogger API.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
}

type impl struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a Logger named `name` that writes through the given
// appenders (defaulting to a stdout ConsoleAppender if none are given).
func NewLogger(name string, appenders ...Appender) Logger {
	if len(appenders) == 0 {
		appenders = []Appender{NewStdoutAppender()}
	}
	cores := make([]zapcore.Core, 0, len(appenders))
	for _, a := range appenders {
		cores = append(cores, &appenderCore{appender: a, level: zapcore.DebugLevel})
	}
	core := zapcore.NewTee(cores...)
	base := zap.New(core, zap.AddCaller()).Named(name)
	return &impl{sugar: base.Sugar()}
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *impl) Named(name string) Logger {
	return &impl{sugar: l.sugar.Named(name)}
}

// appenderCore adapts an Appender to zapcore.Core.
type appenderCore struct {
	appender Appender
	level    zapcore.LevelEnabler
	fields   []zapcore.Field
}

func (c *appenderCore) Enabled(lvl zapcore.Level) bool { return c.level.Enabled(lvl) }

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *appenderCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	return c.appender.Write(entry, all)
}

func (c *appenderCore) Sync() error { return c.appender.Sync() }
