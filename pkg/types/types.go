package types

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

// ServiceFactory is a function type that creates a service implementation.
// The base service is provided as input, and the factory should return a service
// that implements RegistryService (and optionally additional interfaces).
type ServiceFactory func(base service.RegistryService) service.RegistryService

// DatabaseFactory is a function type that creates a database implementation.
// This allows implementors to wrap the configured backend.
type DatabaseFactory func(ctx context.Context, baseDB database.Database) (database.Database, error)

// AppOptions contains configuration for the registry app.
// All fields are optional and allow external developers to extend functionality.
type AppOptions struct {
	// DatabaseFactory is an optional function to wrap the database opened from
	// configuration.
	DatabaseFactory DatabaseFactory

	// ServiceFactory is an optional function to create a service that adds new functionality.
	ServiceFactory ServiceFactory

	// ExtraRoutes allows external integrations to register additional HTTP routes
	// using the same API instance and path prefix as core routes.
	ExtraRoutes func(api huma.API, pathPrefix string)

	// OnServiceCreated is an optional callback that receives the created service
	// (potentially extended via ServiceFactory).
	OnServiceCreated func(service.RegistryService)
}

// Server represents the HTTP server and provides access to the Huma API
// and HTTP mux for registering new routes and handlers.
type Server interface {
	// HumaAPI returns the Huma API instance, allowing registration of new routes
	// that will appear in the OpenAPI documentation.
	HumaAPI() huma.API

	// Mux returns the HTTP ServeMux, allowing registration of custom HTTP handlers
	Mux() *http.ServeMux

	// Start begins listening for incoming HTTP requests
	Start() error

	// Shutdown gracefully shuts down the server
	Shutdown(ctx context.Context) error
}

// Response is a generic wrapper for Huma responses
// Usage: Response[HealthBody] instead of HealthOutput
type Response[T any] struct {
	Body T
}
