package v0

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

// ListPromptsInput represents the input for listing prompts
type ListPromptsInput struct {
	Category   string `query:"category" json:"category,omitempty" doc:"Only prompts in this category" required:"false" example:"coding"`
	IsTemplate string `query:"isTemplate" json:"isTemplate,omitempty" doc:"Only templates (true) or only plain prompts (false)" required:"false" enum:"true,false"`
	Tags       string `query:"tags" json:"tags,omitempty" doc:"Comma-separated tags; prompts must carry all of them" required:"false" example:"review,go"`
	Limit      int    `query:"limit" json:"limit,omitempty" doc:"Number of items per page" default:"50" minimum:"1" maximum:"1000" example:"50"`
	Offset     int    `query:"offset" json:"offset,omitempty" doc:"Number of items to skip" default:"0" minimum:"0" example:"0"`
}

func (in *ListPromptsInput) filter() *models.PromptFilter {
	filter := &models.PromptFilter{Limit: in.Limit, Offset: in.Offset}
	if in.Category != "" {
		filter.Category = &in.Category
	}
	if in.IsTemplate != "" {
		isTemplate := in.IsTemplate == "true"
		filter.IsTemplate = &isTemplate
	}
	for _, tag := range strings.Split(in.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			filter.Tags = append(filter.Tags, tag)
		}
	}
	return filter
}

// PromptDetailInput represents the input for getting prompt details
type PromptDetailInput struct {
	ID string `path:"id" json:"id" doc:"Prompt identifier" example:"code-review-3f9a1c2b"`
}

// PromptVersionDetailInput represents the input for getting a specific version
type PromptVersionDetailInput struct {
	ID      string `path:"id" json:"id" doc:"Prompt identifier" example:"code-review-3f9a1c2b"`
	Version int    `path:"version" json:"version" doc:"Version number" minimum:"1" example:"2"`
}

// CreatePromptInput represents the input for creating a prompt
type CreatePromptInput struct {
	Body models.CreatePromptInput `body:""`
}

// UpdatePromptInput represents the input for a partial prompt update
type UpdatePromptInput struct {
	ID   string                   `path:"id" json:"id" doc:"Prompt identifier" example:"code-review-3f9a1c2b"`
	Body models.UpdatePromptInput `body:""`
}

// ApplyTemplateInput represents the input for rendering a template prompt
type ApplyTemplateInput struct {
	ID   string `path:"id" json:"id" doc:"Prompt identifier" example:"greeting-3f9a1c2b"`
	Body struct {
		Variables map[string]string `json:"variables,omitempty" doc:"Values for the template placeholders" required:"false"`
	}
}

// ApplyTemplateBody is the rendered template
type ApplyTemplateBody struct {
	Content string `json:"content" doc:"Template content with every placeholder substituted"`
}

// DeletePromptBody reports the outcome of a delete
type DeletePromptBody struct {
	Deleted bool `json:"deleted" doc:"Whether anything was removed"`
}

// PromptVersionsBody lists the stored versions of a prompt
type PromptVersionsBody struct {
	ID       string `json:"id" doc:"Prompt identifier"`
	Versions []int  `json:"versions" doc:"Version numbers in ascending order"`
}

// RegisterPromptsEndpoints registers all prompt-related endpoints with a custom path prefix.
func RegisterPromptsEndpoints(api huma.API, pathPrefix string, registry service.RegistryService) {
	tags := []string{"prompts"}
	suffix := strings.ReplaceAll(pathPrefix, "/", "-")

	// List prompts
	huma.Register(api, huma.Operation{
		OperationID: "list-prompts" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/prompts",
		Summary:     "List prompts",
		Description: "Get a page of prompts, most recently updated first",
		Tags:        tags,
	}, func(ctx context.Context, input *ListPromptsInput) (*types.Response[models.PromptListResponse], error) {
		prompts, err := registry.ListPrompts(ctx, input.filter())
		if err != nil {
			return nil, toHumaError(err, "Failed to get prompts list")
		}
		return &types.Response[models.PromptListResponse]{Body: listResponse(prompts)}, nil
	})

	// Create prompt
	huma.Register(api, huma.Operation{
		OperationID:   "create-prompt" + suffix,
		Method:        http.MethodPost,
		Path:          pathPrefix + "/prompts",
		Summary:       "Create prompt",
		Description:   "Create a new prompt at version 1. Template prompts have their variables extracted from the content.",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePromptInput) (*types.Response[models.Prompt], error) {
		prompt, err := registry.CreatePrompt(ctx, &input.Body)
		if err != nil {
			return nil, toHumaError(err, "Failed to create prompt")
		}
		return &types.Response[models.Prompt]{Body: *prompt}, nil
	})

	// Get current prompt
	huma.Register(api, huma.Operation{
		OperationID: "get-prompt" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/prompts/{id}",
		Summary:     "Get prompt",
		Description: "Get the current version of a prompt",
		Tags:        tags,
	}, func(ctx context.Context, input *PromptDetailInput) (*types.Response[models.Prompt], error) {
		prompt, err := registry.GetPrompt(ctx, input.ID, 0)
		if err != nil {
			return nil, toHumaError(err, "Failed to get prompt details")
		}
		return &types.Response[models.Prompt]{Body: *prompt}, nil
	})

	// Update prompt
	huma.Register(api, huma.Operation{
		OperationID: "update-prompt" + suffix,
		Method:      http.MethodPatch,
		Path:        pathPrefix + "/prompts/{id}",
		Summary:     "Update prompt",
		Description: "Apply a partial update and write a new version. Send expectedVersion to reject stale updates with 409.",
		Tags:        tags,
	}, func(ctx context.Context, input *UpdatePromptInput) (*types.Response[models.Prompt], error) {
		prompt, err := registry.UpdatePrompt(ctx, input.ID, &input.Body)
		if err != nil {
			return nil, toHumaError(err, "Failed to update prompt")
		}
		return &types.Response[models.Prompt]{Body: *prompt}, nil
	})

	// Delete prompt
	huma.Register(api, huma.Operation{
		OperationID: "delete-prompt" + suffix,
		Method:      http.MethodDelete,
		Path:        pathPrefix + "/prompts/{id}",
		Summary:     "Delete prompt",
		Description: "Permanently delete a prompt and every version of it",
		Tags:        tags,
	}, func(ctx context.Context, input *PromptDetailInput) (*types.Response[DeletePromptBody], error) {
		return deletePrompt(ctx, registry, input.ID, 0)
	})

	// List versions
	huma.Register(api, huma.Operation{
		OperationID: "get-prompt-versions" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/prompts/{id}/versions",
		Summary:     "List prompt versions",
		Description: "List every stored version number of a prompt. Unknown ids return an empty list.",
		Tags:        tags,
	}, func(ctx context.Context, input *PromptDetailInput) (*types.Response[PromptVersionsBody], error) {
		versions, err := registry.ListPromptVersions(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err, "Failed to get prompt versions")
		}
		return &types.Response[PromptVersionsBody]{
			Body: PromptVersionsBody{ID: input.ID, Versions: versions},
		}, nil
	})

	// Get specific version
	huma.Register(api, huma.Operation{
		OperationID: "get-prompt-version" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/prompts/{id}/versions/{version}",
		Summary:     "Get prompt version",
		Description: "Get a historical version of a prompt. Tags and variables reflect the current prompt.",
		Tags:        tags,
	}, func(ctx context.Context, input *PromptVersionDetailInput) (*types.Response[models.Prompt], error) {
		prompt, err := registry.GetPrompt(ctx, input.ID, input.Version)
		if err != nil {
			return nil, toHumaError(err, "Failed to get prompt version")
		}
		return &types.Response[models.Prompt]{Body: *prompt}, nil
	})

	// Delete specific version
	huma.Register(api, huma.Operation{
		OperationID: "delete-prompt-version" + suffix,
		Method:      http.MethodDelete,
		Path:        pathPrefix + "/prompts/{id}/versions/{version}",
		Summary:     "Delete prompt version",
		Description: "Permanently delete one stored version of a prompt",
		Tags:        tags,
	}, func(ctx context.Context, input *PromptVersionDetailInput) (*types.Response[DeletePromptBody], error) {
		return deletePrompt(ctx, registry, input.ID, input.Version)
	})

	// Apply template
	huma.Register(api, huma.Operation{
		OperationID: "apply-template" + suffix,
		Method:      http.MethodPost,
		Path:        pathPrefix + "/prompts/{id}/apply",
		Summary:     "Apply template",
		Description: "Render a template prompt with the supplied variables. Missing variables and plain prompts answer 422.",
		Tags:        tags,
	}, func(ctx context.Context, input *ApplyTemplateInput) (*types.Response[ApplyTemplateBody], error) {
		content, err := registry.ApplyTemplate(ctx, input.ID, input.Body.Variables)
		if err != nil {
			return nil, toHumaError(err, "Failed to apply template")
		}
		return &types.Response[ApplyTemplateBody]{Body: ApplyTemplateBody{Content: content}}, nil
	})
}

func deletePrompt(ctx context.Context, registry service.RegistryService, id string, version int) (*types.Response[DeletePromptBody], error) {
	deleted, err := registry.DeletePrompt(ctx, id, version)
	if err != nil {
		return nil, toHumaError(err, "Failed to delete prompt")
	}
	if !deleted {
		if version > 0 {
			return nil, huma.Error404NotFound("prompt " + id + " has no such version")
		}
		return nil, huma.Error404NotFound("prompt " + id + " not found")
	}
	return &types.Response[DeletePromptBody]{Body: DeletePromptBody{Deleted: true}}, nil
}

func listResponse(prompts []*models.Prompt) models.PromptListResponse {
	values := make([]models.Prompt, len(prompts))
	for i, p := range prompts {
		values[i] = *p
	}
	return models.PromptListResponse{Prompts: values, Count: len(values)}
}
