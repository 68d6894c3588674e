package logging

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// level is shared by every logger built in this package so SetLevel takes
// effect for loggers created before it was called.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// successSamplePPM is the fraction of request ids whose info and debug events
// are kept, in parts per million.
var successSamplePPM atomic.Int64

// NewLogger creates a named zap production logger.
func NewLogger(name string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named(name)
}

// SetLevel parses a level name such as "debug" or "warn" and applies it to
// every logger from this package.
func SetLevel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(lvl)
	return nil
}

// SetSuccessSampleRate sets the fraction of request ids whose info and debug
// events are logged. Values are clamped to [0, 1].
func SetSuccessSampleRate(rate float64) {
	rate = min(max(rate, 0), 1)
	successSamplePPM.Store(int64(rate * 1e6))
}

// WithRequestID returns a logger with request_id from context.
func WithRequestID(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		return logger.With(zap.String("request_id", reqID))
	}
	return logger
}

// L is shorthand for WithRequestID.
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	return WithRequestID(ctx, base)
}

// ShouldLog reports whether info and debug events for the request in ctx
// survive sampling. Work without a request id (CLI, MCP stdio) is always logged.
func ShouldLog(ctx context.Context) bool {
	reqID := GetRequestID(ctx)
	if reqID == "" {
		return true
	}
	return HashRequestIDToFloat(reqID)*1e6 < float64(successSamplePPM.Load())
}

// SetRequestID stores request_id in context (call once in middleware).
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves request_id from context.
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}
