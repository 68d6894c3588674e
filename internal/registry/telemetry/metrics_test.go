package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndServe(t *testing.T) {
	m, err := New("promptregistry-test", "v0.0.1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	m.Record(context.Background(), "create_prompt", OutcomeOK, time.Now().Add(-5*time.Millisecond))
	m.Record(context.Background(), "get_prompt", OutcomeNotFound, time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "promptregistry_operations_total")
	assert.Contains(t, text, `operation="create_prompt"`)
	assert.Contains(t, text, `outcome="not_found"`)
	assert.Contains(t, text, "promptregistry_operation_duration_seconds")
}

func TestNoop(t *testing.T) {
	m := Noop()
	m.Record(context.Background(), "anything", OutcomeError, time.Now())
	assert.NotNil(t, m.MeterProvider())
	assert.NoError(t, m.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
