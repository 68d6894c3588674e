// Package router contains API routing logic
package router

import (
	"github.com/danielgtaylor/huma/v2"

	versionapi "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/api"
	v0 "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/v0"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
)

// RouteOptions contains optional extensions for route registration.
type RouteOptions struct {
	// Optional callback for integration-owned route registration.
	ExtraRoutes func(api huma.API, pathPrefix string)
}

// RegisterRoutes registers all API routes under /v0.
func RegisterRoutes(
	api huma.API,
	registry service.RegistryService,
	versionInfo *versionapi.VersionBody,
	opts *RouteOptions,
) {
	pathPrefix := "/v0"

	v0.RegisterHealthEndpoint(api, pathPrefix, registry)
	v0.RegisterPingEndpoint(api, pathPrefix)
	versionapi.RegisterVersionEndpoint(api, pathPrefix, versionInfo)
	v0.RegisterPromptsEndpoints(api, pathPrefix, registry)
	v0.RegisterSearchEndpoints(api, pathPrefix, registry)

	if opts != nil && opts.ExtraRoutes != nil {
		opts.ExtraRoutes(api, pathPrefix)
	}
}
