package v0

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

// HealthBody represents the health check response body
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Storage string `json:"storage" example:"ok" doc:"Storage backend status"`
}

// RegisterHealthEndpoint registers the health endpoint. It answers 503 when
// the storage backend fails its probe.
func RegisterHealthEndpoint(api huma.API, pathPrefix string, registry service.RegistryService) {
	huma.Register(api, huma.Operation{
		OperationID: "health" + strings.ReplaceAll(pathPrefix, "/", "-"),
		Method:      http.MethodGet,
		Path:        pathPrefix + "/health",
		Summary:     "Health check",
		Description: "Reports whether the registry can reach its storage backend",
		Tags:        []string{"health"},
	}, func(ctx context.Context, _ *struct{}) (*types.Response[HealthBody], error) {
		if !registry.HealthCheck(ctx) {
			return nil, huma.Error503ServiceUnavailable("storage backend is unavailable")
		}
		return &types.Response[HealthBody]{
			Body: HealthBody{Status: "ok", Storage: "ok"},
		}, nil
	})
}
