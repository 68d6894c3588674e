package registryserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	servicetesting "github.com/agentregistry-dev/promptregistry/internal/registry/service/testing"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

func connect(t *testing.T, registry service.RegistryService) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(registry)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func newFileRegistry(t *testing.T) service.RegistryService {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Storage:    database.StorageFile,
		PromptsDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return service.NewRegistryService(db, service.WithMetrics(telemetry.Noop()))
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		require.NotNil(t, res.StructuredContent)
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func errorText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func TestListTools(t *testing.T) {
	session := connect(t, servicetesting.NewFakeRegistry())

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"add_prompt", "get_prompt", "list_prompts", "update_prompt", "delete_prompt",
		"list_prompt_versions", "apply_template", "search_prompts", "get_stats",
		"registry_health", "registry_version",
	}, names)
}

func TestPromptLifecycle(t *testing.T) {
	session := connect(t, newFileRegistry(t))

	var created models.Prompt
	res := call(t, session, "add_prompt", map[string]any{
		"name":       "Greeting",
		"content":    "Hello {{name}}, welcome to {{place}}",
		"isTemplate": true,
		"tags":       []string{"onboarding"},
	}, &created)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, []string{"name", "place"}, created.Variables)

	var rendered map[string]string
	res = call(t, session, "apply_template", map[string]any{
		"id":        created.ID,
		"variables": map[string]string{"name": "Ada", "place": "the lab"},
	}, &rendered)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, "Hello Ada, welcome to the lab", rendered["content"])

	var updated models.Prompt
	res = call(t, session, "update_prompt", map[string]any{
		"id":         created.ID,
		"content":    "Plain text now",
		"isTemplate": false,
	}, &updated)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, 2, updated.Version)
	assert.Empty(t, updated.Variables)

	var versions VersionsResult
	call(t, session, "list_prompt_versions", map[string]any{"id": created.ID}, &versions)
	assert.Equal(t, []int{1, 2}, versions.Versions)

	var first models.Prompt
	call(t, session, "get_prompt", map[string]any{"id": created.ID, "version": 1}, &first)
	assert.Equal(t, "Hello {{name}}, welcome to {{place}}", first.Content)

	res = call(t, session, "apply_template", map[string]any{"id": created.ID}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "not a template")

	var found models.PromptListResponse
	call(t, session, "search_prompts", map[string]any{"query": "PLAIN"}, &found)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, created.ID, found.Prompts[0].ID)

	var stats models.Stats
	call(t, session, "get_stats", map[string]any{}, &stats)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Regular)
	assert.Equal(t, 1, stats.Tags["onboarding"])

	var deleted DeleteResult
	call(t, session, "delete_prompt", map[string]any{"id": created.ID}, &deleted)
	assert.True(t, deleted.Deleted)
	call(t, session, "delete_prompt", map[string]any{"id": created.ID}, &deleted)
	assert.False(t, deleted.Deleted)
}

func TestGetPrompt_NotFound(t *testing.T) {
	session := connect(t, newFileRegistry(t))

	res := call(t, session, "get_prompt", map[string]any{"id": "missing-0000"}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "not found")
}

func TestApplyTemplate_MissingVariables(t *testing.T) {
	session := connect(t, newFileRegistry(t))

	var created models.Prompt
	call(t, session, "add_prompt", map[string]any{
		"name": "Pair", "content": "{{a}} and {{b}}", "isTemplate": true,
	}, &created)

	res := call(t, session, "apply_template", map[string]any{
		"id": created.ID, "variables": map[string]string{"a": "x"},
	}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "b")
}

func TestListPrompts_ClampsLimit(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	var got *models.PromptFilter
	reg.ListPromptsFn = func(_ context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
		got = filter
		return []*models.Prompt{{ID: "a-1"}}, nil
	}
	session := connect(t, reg)

	var out models.PromptListResponse
	res := call(t, session, "list_prompts", map[string]any{"limit": 5000, "category": "coding"}, &out)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, maxPageLimit, got.Limit)
	assert.Equal(t, "coding", *got.Category)
	assert.Equal(t, 1, out.Count)

	call(t, session, "list_prompts", map[string]any{}, &out)
	assert.Equal(t, defaultPageLimit, got.Limit)
}

func TestMetaTools(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	session := connect(t, reg)

	var health map[string]string
	call(t, session, "registry_health", map[string]any{}, &health)
	assert.Equal(t, "ok", health["status"])

	reg.Healthy = false
	call(t, session, "registry_health", map[string]any{}, &health)
	assert.Equal(t, "unavailable", health["status"])

	var info map[string]string
	call(t, session, "registry_version", map[string]any{}, &info)
	assert.Equal(t, serverName, info["serverName"])
	assert.NotEmpty(t, info["version"])
}

func TestPromptResources(t *testing.T) {
	reg := servicetesting.NewFakeRegistry()
	reg.Prompts = []*models.Prompt{
		{ID: "greeting-1", Name: "Greeting", Content: "Hi", Version: 1},
		{ID: "review-2", Name: "Review", Content: "Check this", Version: 3},
	}
	session := connect(t, reg)
	ctx := context.Background()

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: allPromptsURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var all models.PromptListResponse
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &all))
	assert.Equal(t, 2, all.Count)

	res, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "prompts://review-2"})
	require.NoError(t, err)
	var one models.Prompt
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &one))
	assert.Equal(t, "Review", one.Name)
	assert.Equal(t, 3, one.Version)

	_, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "prompts://missing"})
	assert.Error(t, err)
}

func TestDeletePrompt_NegativeVersionKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	session := connect(t, newFileRegistry(t))

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	for _, tool := range tools.Tools {
		if tool.Name != "delete_prompt" && tool.Name != "get_prompt" {
			continue
		}
		raw, err := json.Marshal(tool.InputSchema)
		require.NoError(t, err)
		var schema struct {
			Properties map[string]struct {
				Minimum *float64 `json:"minimum"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(raw, &schema))
		require.NotNil(t, schema.Properties["version"].Minimum, tool.Name)
		assert.Equal(t, 0.0, *schema.Properties["version"].Minimum, tool.Name)
	}

	var created models.Prompt
	res := call(t, session, "add_prompt", map[string]any{"name": "Keeper", "content": "stay"}, &created)
	require.False(t, res.IsError, errorText(res))

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "delete_prompt",
		Arguments: map[string]any{"id": created.ID, "version": -1},
	})
	if err == nil {
		assert.True(t, res.IsError)
	}

	var versions VersionsResult
	call(t, session, "list_prompt_versions", map[string]any{"id": created.ID}, &versions)
	assert.Equal(t, []int{1}, versions.Versions)
}
