package logging

import (
	"context"
	"io"
	"strings"

	"github.com/goliatone/go-logger/glog"
)

type glogLogger struct {
	logger glog.Logger
}

// FromGlog adapts a go-logger logger to Logger.
func FromGlog(logger glog.Logger) Logger {
	if logger == nil {
		return NewConsole(nil)
	}
	return glogLogger{logger: logger}
}

// NewGlog builds a go-logger backed Logger writing to out.
// format is "json" or anything else for console output.
func NewGlog(out io.Writer, level, format string) Logger {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return FromGlog(glog.NewLogger(
			glog.WithWriter(out),
			glog.WithLoggerTypeJSON(),
			glog.WithLevel(level),
		))
	}
	return FromGlog(glog.NewLogger(
		glog.WithWriter(out),
		glog.WithLevel(level),
	))
}

func (l glogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogLogger) WithContext(ctx context.Context) Logger {
	if l.logger == nil {
		return NewConsole(nil).WithContext(ctx)
	}
	return glogLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogLogger) WithFields(fields map[string]any) Logger {
	if l.logger == nil {
		return NewConsole(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}
