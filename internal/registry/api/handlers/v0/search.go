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

// SearchPromptsInput represents the input for a prompt search
type SearchPromptsInput struct {
	Query string `query:"q" json:"q" doc:"Case-insensitive text to look for in name, content, description and tags" required:"true" example:"review"`
}

// RegisterSearchEndpoints registers search and stats, both of which scan
// every stored prompt.
func RegisterSearchEndpoints(api huma.API, pathPrefix string, registry service.RegistryService) {
	suffix := strings.ReplaceAll(pathPrefix, "/", "-")

	huma.Register(api, huma.Operation{
		OperationID: "search-prompts" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/search",
		Summary:     "Search prompts",
		Tags:        []string{"prompts"},
	}, func(ctx context.Context, input *SearchPromptsInput) (*types.Response[models.PromptListResponse], error) {
		prompts, err := registry.SearchPrompts(ctx, input.Query)
		if err != nil {
			return nil, toHumaError(err, "Failed to search prompts")
		}
		return &types.Response[models.PromptListResponse]{Body: listResponse(prompts)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stats" + suffix,
		Method:      http.MethodGet,
		Path:        pathPrefix + "/stats",
		Summary:     "Prompt statistics",
		Description: "Counts of prompts by kind, category and tag",
		Tags:        []string{"stats"},
	}, func(ctx context.Context, _ *struct{}) (*types.Response[models.Stats], error) {
		stats, err := registry.GetStats(ctx)
		if err != nil {
			return nil, toHumaError(err, "Failed to get stats")
		}
		return &types.Response[models.Stats]{Body: *stats}, nil
	})
}
