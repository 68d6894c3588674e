package registryserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/version"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const (
	serverName = "promptregistry-mcp"

	defaultPageLimit = models.DefaultListLimit
	maxPageLimit     = 1000

	allPromptsURI     = "prompts://all"
	promptURIPrefix   = "prompts://"
	promptURITemplate = "prompts://{id}"
	jsonMIMEType      = "application/json"
)

// NewServer constructs an MCP server exposing prompt management tools and
// read-only prompt resources backed by the registry service.
func NewServer(registry service.RegistryService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasResources: true,
	})

	addPromptTools(server, registry)
	addTemplateTools(server, registry)
	addMetaTools(server, registry)
	addPromptResources(server, registry)

	return server
}

type addPromptArgs struct {
	Name        string         `json:"name" jsonschema:"display name, 1 to 100 characters"`
	Content     string         `json:"content" jsonschema:"prompt body; may contain {{variable}} placeholders"`
	Description *string        `json:"description,omitempty" jsonschema:"optional description, at most 500 characters"`
	IsTemplate  bool           `json:"isTemplate,omitempty" jsonschema:"whether content is a template"`
	Tags        []string       `json:"tags,omitempty" jsonschema:"tags for categorization"`
	Category    *string        `json:"category,omitempty" jsonschema:"category for organization"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"opaque metadata"`
	Variables   []string       `json:"variables,omitempty" jsonschema:"variable names for non-template prompts"`
}

type getPromptArgs struct {
	ID      string `json:"id" jsonschema:"prompt identifier"`
	Version int    `json:"version,omitempty" jsonschema:"version to fetch; the current version when omitted"`
}

type listPromptsArgs struct {
	Category   *string  `json:"category,omitempty" jsonschema:"only prompts in this category"`
	IsTemplate *bool    `json:"isTemplate,omitempty" jsonschema:"only templates (true) or only plain prompts (false)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"prompts must carry every listed tag"`
	Limit      int      `json:"limit,omitempty" jsonschema:"page size, default 50"`
	Offset     int      `json:"offset,omitempty" jsonschema:"number of prompts to skip"`
}

type updatePromptArgs struct {
	ID              string          `json:"id" jsonschema:"prompt identifier"`
	Name            *string         `json:"name,omitempty"`
	Content         *string         `json:"content,omitempty"`
	Description     *string         `json:"description,omitempty"`
	IsTemplate      *bool           `json:"isTemplate,omitempty"`
	Tags            *[]string       `json:"tags,omitempty" jsonschema:"replaces the full tag set when present"`
	Category        *string         `json:"category,omitempty"`
	Metadata        *map[string]any `json:"metadata,omitempty"`
	Variables       *[]string       `json:"variables,omitempty"`
	ExpectedVersion *int            `json:"expectedVersion,omitempty" jsonschema:"reject the update unless the stored version matches"`
}

type deletePromptArgs struct {
	ID      string `json:"id" jsonschema:"prompt identifier"`
	Version int    `json:"version,omitempty" jsonschema:"delete only this version; the whole prompt when omitted"`
}

type idArgs struct {
	ID string `json:"id" jsonschema:"prompt identifier"`
}

// DeleteResult reports whether a delete removed anything.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// VersionsResult lists stored versions of a prompt.
type VersionsResult struct {
	ID       string `json:"id"`
	Versions []int  `json:"versions"`
}

func addPromptTools(server *mcp.Server, registry service.RegistryService) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_prompt",
		Description: "Create a new prompt. Template prompts have their variables extracted from the content.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args addPromptArgs) (*mcp.CallToolResult, models.Prompt, error) {
		prompt, err := registry.CreatePrompt(ctx, &models.CreatePromptInput{
			Name:        args.Name,
			Content:     args.Content,
			Description: args.Description,
			IsTemplate:  args.IsTemplate,
			Tags:        args.Tags,
			Category:    args.Category,
			Metadata:    args.Metadata,
			Variables:   args.Variables,
		})
		if err != nil {
			return nil, models.Prompt{}, err
		}
		return nil, *prompt, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_prompt",
		Description: "Fetch a prompt by id, optionally at a specific version",
		InputSchema: versionedInputSchema[getPromptArgs](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args getPromptArgs) (*mcp.CallToolResult, models.Prompt, error) {
		if args.ID == "" {
			return nil, models.Prompt{}, fmt.Errorf("id is required")
		}
		prompt, err := registry.GetPrompt(ctx, args.ID, args.Version)
		if err != nil {
			return nil, models.Prompt{}, err
		}
		return nil, *prompt, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_prompts",
		Description: "List prompts, most recently updated first, with optional filters and paging",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args listPromptsArgs) (*mcp.CallToolResult, models.PromptListResponse, error) {
		prompts, err := registry.ListPrompts(ctx, &models.PromptFilter{
			Category:   args.Category,
			IsTemplate: args.IsTemplate,
			Tags:       args.Tags,
			Limit:      clampLimit(args.Limit),
			Offset:     args.Offset,
		})
		if err != nil {
			return nil, models.PromptListResponse{}, err
		}
		return nil, listResponse(prompts), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_prompt",
		Description: "Apply a partial update to a prompt and write a new version",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args updatePromptArgs) (*mcp.CallToolResult, models.Prompt, error) {
		if args.ID == "" {
			return nil, models.Prompt{}, fmt.Errorf("id is required")
		}
		prompt, err := registry.UpdatePrompt(ctx, args.ID, &models.UpdatePromptInput{
			Name:            args.Name,
			Content:         args.Content,
			Description:     args.Description,
			IsTemplate:      args.IsTemplate,
			Tags:            args.Tags,
			Category:        args.Category,
			Metadata:        args.Metadata,
			Variables:       args.Variables,
			ExpectedVersion: args.ExpectedVersion,
		})
		if err != nil {
			return nil, models.Prompt{}, err
		}
		return nil, *prompt, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_prompt",
		Description: "Delete a whole prompt, or a single version of it",
		InputSchema: versionedInputSchema[deletePromptArgs](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args deletePromptArgs) (*mcp.CallToolResult, DeleteResult, error) {
		deleted, err := registry.DeletePrompt(ctx, args.ID, args.Version)
		if err != nil {
			return nil, DeleteResult{}, err
		}
		return nil, DeleteResult{Deleted: deleted}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_prompt_versions",
		Description: "List every stored version number of a prompt",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args idArgs) (*mcp.CallToolResult, VersionsResult, error) {
		versions, err := registry.ListPromptVersions(ctx, args.ID)
		if err != nil {
			return nil, VersionsResult{}, err
		}
		return nil, VersionsResult{ID: args.ID, Versions: versions}, nil
	})
}

func addTemplateTools(server *mcp.Server, registry service.RegistryService) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_template",
		Description: "Render a template prompt, substituting every {{variable}} placeholder",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args struct {
		ID        string            `json:"id" jsonschema:"template prompt identifier"`
		Variables map[string]string `json:"variables,omitempty" jsonschema:"values for the placeholders"`
	}) (*mcp.CallToolResult, map[string]string, error) {
		content, err := registry.ApplyTemplate(ctx, args.ID, args.Variables)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: content}},
		}, map[string]string{"content": content}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_prompts",
		Description: "Case-insensitive search across prompt names, content, descriptions and tags",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args struct {
		Query string `json:"query" jsonschema:"text to look for"`
	}) (*mcp.CallToolResult, models.PromptListResponse, error) {
		prompts, err := registry.SearchPrompts(ctx, args.Query)
		if err != nil {
			return nil, models.PromptListResponse{}, err
		}
		return nil, listResponse(prompts), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Counts of prompts by kind, category and tag",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, models.Stats, error) {
		stats, err := registry.GetStats(ctx)
		if err != nil {
			return nil, models.Stats{}, err
		}
		return nil, *stats, nil
	})
}

func addMetaTools(server *mcp.Server, registry service.RegistryService) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "registry_health",
		Description: "Report whether the registry can reach its storage backend",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, map[string]string, error) {
		status := "ok"
		if !registry.HealthCheck(ctx) {
			status = "unavailable"
		}
		return nil, map[string]string{"status": status}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "registry_version",
		Description: "Return registry build metadata",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, map[string]string, error) {
		return nil, map[string]string{
			"version":    version.Version,
			"gitCommit":  version.GitCommit,
			"serverName": serverName,
		}, nil
	})
}

func addPromptResources(server *mcp.Server, registry service.RegistryService) {
	server.AddResource(&mcp.Resource{
		URI:         allPromptsURI,
		Name:        "all-prompts",
		Description: "Every stored prompt at its current version",
		MIMEType:    jsonMIMEType,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		var all []*models.Prompt
		for offset := 0; ; offset += maxPageLimit {
			page, err := registry.ListPrompts(ctx, &models.PromptFilter{Limit: maxPageLimit, Offset: offset})
			if err != nil {
				return nil, err
			}
			all = append(all, page...)
			if len(page) < maxPageLimit {
				break
			}
		}
		return jsonResource(req.Params.URI, listResponse(all))
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: promptURITemplate,
		Name:        "prompt",
		Description: "A single prompt at its current version",
		MIMEType:    jsonMIMEType,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		id := strings.TrimPrefix(req.Params.URI, promptURIPrefix)
		if id == "" || strings.Contains(id, "/") {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		prompt, err := registry.GetPrompt(ctx, id, 0)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return jsonResource(req.Params.URI, prompt)
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIMEType, Text: string(data)}},
	}, nil
}

func listResponse(prompts []*models.Prompt) models.PromptListResponse {
	out := models.PromptListResponse{Prompts: make([]models.Prompt, len(prompts)), Count: len(prompts)}
	for i, p := range prompts {
		out.Prompts[i] = *p
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// versionedInputSchema infers the input schema for T and bounds its version
// property below by zero, which stands for "no specific version".
func versionedInputSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("registryserver: input schema for %T: %v", *new(T), err))
	}
	if prop, ok := schema.Properties["version"]; ok {
		minimum := 0.0
		prop.Minimum = &minimum
	}
	return schema
}
