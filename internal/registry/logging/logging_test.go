package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := SetRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestLog_AddsRequestIDAndRedacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := SetRequestID(context.Background(), "req-42")
	SetSuccessSampleRate(1)
	t.Cleanup(func() { SetSuccessSampleRate(DefaultEventLoggingConfig().SuccessSampleRate) })

	Log(ctx, base, zapcore.InfoLevel, "created", zap.String("id", "p-1"), zap.String("api_token", "s3cr3t"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "p-1", fields["id"])
	assert.Equal(t, redactedValue, fields["api_token"])
}

func TestLog_SamplingKeepsWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	SetSuccessSampleRate(0)
	t.Cleanup(func() { SetSuccessSampleRate(DefaultEventLoggingConfig().SuccessSampleRate) })

	ctx := SetRequestID(context.Background(), "sampled-out")
	Log(ctx, base, zapcore.InfoLevel, "dropped")
	Log(ctx, base, zapcore.WarnLevel, "kept")
	Log(context.Background(), base, zapcore.InfoLevel, "no request id")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, "no request id", logs.All()[1].Message)
}

func TestHashRequestIDToFloat(t *testing.T) {
	a := HashRequestIDToFloat("abc")
	assert.Equal(t, a, HashRequestIDToFloat("abc"))
	assert.GreaterOrEqual(t, a, 0.0)
	assert.LessOrEqual(t, a, 1.0)
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { level.SetLevel(zapcore.InfoLevel) })

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	require.NoError(t, SetLevel(""))
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Error(t, SetLevel("loud"))
}

func TestParseEventLoggingConfig(t *testing.T) {
	parsed := ParseEventLoggingConfig(&EventLoggingConfig{
		SuccessSampleRate: 0.5,
		ExcludePaths:      " /metrics , ,/v0/ping",
		ErrorOnlyPaths:    "/v0/health",
		RedactPatterns:    "secret",
	})
	assert.Equal(t, map[string]bool{"/metrics": true, "/v0/ping": true}, parsed.ExcludePaths)
	assert.True(t, parsed.ErrorOnlyPaths["/v0/health"])
	assert.True(t, parsed.RedactRegex.MatchString("CLIENT_SECRET"))
	assert.False(t, parsed.RedactRegex.MatchString("name"))
}

func TestEventLevelFromStatusCode(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, EventLevelFromStatusCode(503))
	assert.Equal(t, zapcore.WarnLevel, EventLevelFromStatusCode(404))
	assert.Equal(t, zapcore.InfoLevel, EventLevelFromStatusCode(200))
}
