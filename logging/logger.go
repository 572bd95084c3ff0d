// Package logging is the logging contract of the engine packages, with a
// plain-text Console fallback and an adapter over go-logger for hosts.
package logging

import (
	"context"
	stderrors "errors"
	"io"

	apperrors "github.com/goliatone/go-errors"
)

// Logger is what the engine packages log through.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that carry structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// Normalize returns logger, or a stderr Console when logger is nil.
func Normalize(logger Logger) Logger {
	if logger == nil {
		return NewConsole(nil)
	}
	return logger
}

// Nop discards everything.
func Nop() Logger {
	return NewConsole(io.Discard)
}

// WithFields attaches fields when the logger supports them and returns it
// unchanged otherwise.
func WithFields(logger Logger, fields map[string]any) Logger {
	logger = Normalize(logger)
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}

// WithError attaches the error_code and error_category of err when it is a
// go-errors error.
func WithError(logger Logger, err error) Logger {
	var ae *apperrors.Error
	if !stderrors.As(err, &ae) {
		return Normalize(logger)
	}
	fields := map[string]any{"error_category": ae.Category.String()}
	if ae.TextCode != "" {
		fields["error_code"] = ae.TextCode
	}
	return WithFields(logger, fields)
}

// ErrorCode returns the text code carried by err, or "" when err is not a
// go-errors error.
func ErrorCode(err error) string {
	var ae *apperrors.Error
	if stderrors.As(err, &ae) {
		return ae.TextCode
	}
	return ""
}
