package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

// VersionBody represents the version information
type VersionBody struct {
	Version   string `json:"version" example:"1.0.0" doc:"Version of the API"`
	BuildTime string `json:"buildTime" example:"2024-01-01T00:00:00Z" doc:"Build timestamp"`
	GitCommit string `json:"gitCommit" example:"abc123" doc:"Git commit hash"`
}

// RegisterVersionEndpoint registers the version endpoint
func RegisterVersionEndpoint(api huma.API, basePath string, info *VersionBody) {
	huma.Register(api, huma.Operation{
		OperationID: "get-api-version" + strings.ReplaceAll(basePath, "/", "-"),
		Method:      http.MethodGet,
		Path:        basePath + "/version",
		Summary:     "Get API version information",
		Description: "Returns version, build time, and git commit information",
		Tags:        []string{"version"},
	}, func(ctx context.Context, input *struct{}) (*types.Response[VersionBody], error) {
		resp := &types.Response[VersionBody]{}
		if info != nil {
			resp.Body = *info
		}
		return resp, nil
	})
}
