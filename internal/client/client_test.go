package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/api"
	versionapi "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/api"
	"github.com/agentregistry-dev/promptregistry/internal/registry/config"
	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

func TestPingWithRetry_ImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := pingWithRetry(c); err != nil {
		t.Fatalf("pingWithRetry failed on immediate success: %v", err)
	}
}

func TestPingWithRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := pingWithRetry(c); err != nil {
		t.Fatalf("pingWithRetry failed: %v (calls=%d)", err, calls.Load())
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got %d", calls.Load())
	}
}

func TestPingWithRetry_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := pingWithRetry(c)
	if err == nil {
		t.Fatal("expected error when all pings fail")
	}
}

func newRegistryServer(t *testing.T) *Client {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Storage:    database.StorageFile,
		PromptsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{CORSOrigins: []string{"*"}, EventLogging: *logging.DefaultEventLoggingConfig()}
	svc := service.NewRegistryService(db, service.WithMetrics(telemetry.Noop()))
	server := api.NewServer(cfg, svc, telemetry.Noop(), &versionapi.VersionBody{Version: "v1.2.3", GitCommit: "abc"}, nil)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/v0/", "token")
}

func TestClient_PromptRoundTrip(t *testing.T) {
	c := newRegistryServer(t)

	ver, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", ver.Version)
	assert.Equal(t, "abc", ver.GitCommit)

	created, err := c.CreatePrompt(&models.CreatePromptInput{
		Name: "Greeting", Content: "Hello {{name}}", IsTemplate: true, Tags: []string{"onboarding"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, created.Variables)

	rendered, err := c.ApplyTemplate(created.ID, map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", rendered)

	_, err = c.ApplyTemplate(created.ID, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	content := "Hi {{name}}"
	updated, err := c.UpdatePrompt(created.ID, &models.UpdatePromptInput{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	versions, err := c.ListPromptVersions(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	first, err := c.GetPrompt(created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{name}}", first.Content)

	isTemplate := true
	listed, err := c.ListPrompts(ListOptions{IsTemplate: &isTemplate, Tags: []string{"onboarding"}})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	found, err := c.SearchPrompts("HI")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Templates)

	deleted, err := c.DeletePrompt(created.ID, 0)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.DeletePrompt(created.ID, 0)
	require.NoError(t, err)
	assert.False(t, deleted)

	missing, err := c.GetPrompt(created.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_ValidationError(t *testing.T) {
	c := newRegistryServer(t)

	_, err := c.CreatePrompt(&models.CreatePromptInput{Name: "  ", Content: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "body.name")
	assert.False(t, IsNotFound(err))
}
