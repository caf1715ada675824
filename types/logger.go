// Package types holds the small set of interfaces shared across the
// ambient stack (logger/, config/) that would otherwise create an import
// cycle if declared next to their implementations.
package types

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger provides simple, unstructured logging.
type StandardLogger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// StructuredLogger provides logging with key-value pairs, the "w" suffix
// standing for "with" as in zap's SugaredLogger.
type StructuredLogger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Fatalw(msg string, keysAndValues ...any)
}

// ZapLogger provides logging with typed zap fields, the "z" suffix
// distinguishing it from the other two styles.
type ZapLogger interface {
	Debugz(msg string, fields ...zap.Field)
	Infoz(msg string, fields ...zap.Field)
	Warnz(msg string, fields ...zap.Field)
	Errorz(msg string, fields ...zap.Field)
	Fatalz(msg string, fields ...zap.Field)
}

// Logger combines all three logging styles plus the With chain used to
// attach subsystem context (e.g. invocation id, procedure name).
type Logger interface {
	StandardLogger
	StructuredLogger
	ZapLogger

	With(fields ...string) Logger
	WithObject(name string, obj zapcore.ObjectMarshaler) Logger
	WithArray(name string, arr zapcore.ArrayMarshaler) Logger
}
