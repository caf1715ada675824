// Package logger holds the global per-subsystem logger instances that
// logger/zap.Init populates. Callers depend only on this package and
// types.Logger, never on the zap implementation package directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bicycledb/bicycledb/types"
)

var (
	// Engine logs key-value engine operations (put/get/delete/batch/iter).
	Engine types.Logger = discard{}
	// Procedure logs procedure registry lifecycle (deploy/remove/startup scan).
	Procedure types.Logger = discard{}
	// Biplane logs WASM runtime instantiation and invocation outcomes.
	Biplane types.Logger = discard{}
	// RPC logs inbound gRPC calls at the facade boundary.
	RPC types.Logger = discard{}
	// Runtime logs process lifecycle events (startup, shutdown, signals).
	Runtime types.Logger = discard{}
)

// discard is the zero-value subsystem logger: every method is a no-op, so
// packages wiring Engine/Procedure/Biplane/RPC/Runtime never need to guard
// against a nil logger before logger/zap.Init replaces these with the real
// thing during Bootstrap.
type discard struct{}

var _ types.Logger = discard{}

func (discard) Debug(args ...any) {}
func (discard) Info(args ...any)  {}
func (discard) Warn(args ...any)  {}
func (discard) Error(args ...any) {}
func (discard) Fatal(args ...any) {}

func (discard) Debugf(format string, args ...any) {}
func (discard) Infof(format string, args ...any)  {}
func (discard) Warnf(format string, args ...any)  {}
func (discard) Errorf(format string, args ...any) {}
func (discard) Fatalf(format string, args ...any) {}

func (discard) Debugw(msg string, keysAndValues ...any) {}
func (discard) Infow(msg string, keysAndValues ...any)  {}
func (discard) Warnw(msg string, keysAndValues ...any)  {}
func (discard) Errorw(msg string, keysAndValues ...any) {}
func (discard) Fatalw(msg string, keysAndValues ...any) {}

func (discard) Debugz(msg string, fields ...zap.Field) {}
func (discard) Infoz(msg string, fields ...zap.Field)  {}
func (discard) Warnz(msg string, fields ...zap.Field)  {}
func (discard) Errorz(msg string, fields ...zap.Field) {}
func (discard) Fatalz(msg string, fields ...zap.Field) {}

func (d discard) With(fields ...string) types.Logger { return d }
func (d discard) WithObject(name string, obj zapcore.ObjectMarshaler) types.Logger {
	return d
}
func (d discard) WithArray(name string, arr zapcore.ArrayMarshaler) types.Logger {
	return d
}
