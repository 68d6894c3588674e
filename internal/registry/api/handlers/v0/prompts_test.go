package v0_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/v0"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	servicetesting "github.com/agentregistry-dev/promptregistry/internal/registry/service/testing"
	"github.com/agentregistry-dev/promptregistry/internal/registry/template"
	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

func newTestAPI(reg service.RegistryService) *http.ServeMux {
	mux := http.NewServeMux()
	cfg := huma.DefaultConfig("Test API", "1.0.0")
	cfg.CreateHooks = nil
	api := humago.New(mux, cfg)
	v0.RegisterPromptsEndpoints(api, "/v0", reg)
	v0.RegisterSearchEndpoints(api, "/v0", reg)
	v0.RegisterHealthEndpoint(api, "/v0", reg)
	v0.RegisterPingEndpoint(api, "/v0")
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestListPrompts_PassesFilter(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	var got *models.PromptFilter
	reg.ListPromptsFn = func(_ context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
		got = filter
		return []*models.Prompt{{ID: "a-1", Name: "a"}}, nil
	}

	w := do(t, newTestAPI(reg), http.MethodGet, "/v0/prompts?category=coding&isTemplate=true&tags=go,%20review&limit=5&offset=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, "coding", *got.Category)
	assert.True(t, *got.IsTemplate)
	assert.Equal(t, []string{"go", "review"}, got.Tags)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, 10, got.Offset)

	var resp models.PromptListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "a-1", resp.Prompts[0].ID)
}

func TestListPrompts_DefaultsLimit(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	var got *models.PromptFilter
	reg.ListPromptsFn = func(_ context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
		got = filter
		return nil, nil
	}

	w := do(t, newTestAPI(reg), http.MethodGet, "/v0/prompts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultListLimit, got.Limit)
	assert.Nil(t, got.IsTemplate)
	assert.Nil(t, got.Category)
}

func TestCreatePrompt_Created(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.CreatePromptFn = func(_ context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
		return &models.Prompt{ID: "greeting-1", Name: in.Name, Content: in.Content, IsTemplate: in.IsTemplate, Variables: []string{"user"}, Version: 1}, nil
	}

	w := do(t, newTestAPI(reg), http.MethodPost, "/v0/prompts", map[string]any{
		"name": "Greeting", "content": "Hi {{user}}", "isTemplate": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p models.Prompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "greeting-1", p.ID)
	assert.Equal(t, []string{"user"}, p.Variables)
	assert.Equal(t, 1, reg.CreatePromptCalls)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validators.ValidationErrors{{Field: "name", Message: "must not be empty"}}, http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: bad", database.ErrInvalidInput), http.StatusBadRequest},
		{"not found", &service.NotFoundError{Resource: "prompt", ID: "x"}, http.StatusNotFound},
		{"conflict", fmt.Errorf("stale: %w", database.ErrConflict), http.StatusConflict},
		{"storage", &database.StorageError{Op: "write", Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := servicetesting.NewFakeRegistry()
			reg.UpdatePromptFn = func(context.Context, string, *models.UpdatePromptInput) (*models.Prompt, error) {
				return nil, tt.err
			}
			w := do(t, newTestAPI(reg), http.MethodPatch, "/v0/prompts/x", map[string]any{"content": "new"})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCreatePrompt_ValidationDetails(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.CreatePromptFn = func(context.Context, *models.CreatePromptInput) (*models.Prompt, error) {
		return nil, validators.ValidationErrors{{Field: "name", Message: "must not be empty"}}
	}

	w := do(t, newTestAPI(reg), http.MethodPost, "/v0/prompts", map[string]any{"name": "  ", "content": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "body.name")
	assert.Contains(t, w.Body.String(), "must not be empty")
}

func TestGetPromptVersion(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.GetPromptFn = func(_ context.Context, id string, version int) (*models.Prompt, error) {
		if version != 2 {
			return nil, &service.NotFoundError{Resource: "prompt", ID: id, Version: version}
		}
		return &models.Prompt{ID: id, Version: 2, Content: "v2"}, nil
	}
	mux := newTestAPI(reg)

	w := do(t, mux, http.MethodGet, "/v0/prompts/p-1/versions/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content":"v2"`)

	w = do(t, mux, http.MethodGet, "/v0/prompts/p-1/versions/3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "version 3 not found")
}

func TestDeletePrompt(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.DeletePromptFn = func(_ context.Context, id string, version int) (bool, error) {
		return id == "exists", nil
	}
	mux := newTestAPI(reg)

	w := do(t, mux, http.MethodDelete, "/v0/prompts/exists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())

	w = do(t, mux, http.MethodDelete, "/v0/prompts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, mux, http.MethodDelete, "/v0/prompts/missing/versions/4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 3, reg.DeletePromptCalls)
}

func TestListPromptVersions(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.Prompts = []*models.Prompt{{ID: "p-1", Version: 3}}

	w := do(t, newTestAPI(reg), http.MethodGet, "/v0/prompts/p-1/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"p-1","versions":[1,2,3]}`, w.Body.String())
}

func TestApplyTemplate(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.ApplyTemplateFn = func(_ context.Context, id string, vars map[string]string) (string, error) {
		switch id {
		case "plain":
			return "", fmt.Errorf("prompt plain: %w", service.ErrNotATemplate)
		case "missing-vars":
			return "", &template.MissingVariablesError{Names: []string{"a", "b"}}
		}
		return "Hi " + vars["user"], nil
	}
	mux := newTestAPI(reg)

	w := do(t, mux, http.MethodPost, "/v0/prompts/greeting/apply", map[string]any{"variables": map[string]string{"user": "Ada"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"content":"Hi Ada"}`, w.Body.String())

	w = do(t, mux, http.MethodPost, "/v0/prompts/plain/apply", map[string]any{"variables": map[string]string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not a template")

	w = do(t, mux, http.MethodPost, "/v0/prompts/missing-vars/apply", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "a, b")
}

func TestSearchAndStats(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.SearchPromptsFn = func(_ context.Context, q string) ([]*models.Prompt, error) {
		return []*models.Prompt{{ID: "hit-" + q}}, nil
	}
	reg.Stats = &models.Stats{Total: 3, Templates: 1, Regular: 2, Categories: map[string]int{"c": 1}, Tags: map[string]int{"t": 2}}
	mux := newTestAPI(reg)

	w := do(t, mux, http.MethodGet, "/v0/search?q=review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hit-review")

	w = do(t, mux, http.MethodGet, "/v0/search", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, mux, http.MethodGet, "/v0/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3,"templates":1,"regular":2,"categories":{"c":1},"tags":{"t":2}}`, w.Body.String())
}

func TestHealthAndPing(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	mux := newTestAPI(reg)

	w := do(t, mux, http.MethodGet, "/v0/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	reg.Healthy = false
	w = do(t, mux, http.MethodGet, "/v0/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, mux, http.MethodGet, "/v0/ping", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pong":true`)
}
