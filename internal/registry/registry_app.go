// Package registry wires configuration, storage, the service layer and the
// HTTP and MCP front ends into a runnable application.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/agentregistry-dev/promptregistry/internal/mcp/registryserver"
	"github.com/agentregistry-dev/promptregistry/internal/registry/api"
	"github.com/agentregistry-dev/promptregistry/internal/registry/api/router"
	"github.com/agentregistry-dev/promptregistry/internal/registry/config"
	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/seed"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/internal/version"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

const (
	serviceName     = "promptregistry"
	shutdownTimeout = 10 * time.Second
)

var log = logging.NewLogger("app")

// App owns every long-lived component of a running registry.
type App struct {
	cfg      *config.Config
	opts     *types.AppOptions
	db       database.Database
	metrics  *telemetry.Metrics
	registry service.RegistryService
}

// NewApp validates cfg, opens storage and builds the service. The caller
// must Close the returned App.
func NewApp(ctx context.Context, cfg *config.Config, opts *types.AppOptions) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	logging.Configure(logging.ParseEventLoggingConfig(&cfg.EventLogging))
	if opts == nil {
		opts = &types.AppOptions{}
	}

	metrics := telemetry.Noop()
	if !cfg.DisableMetrics {
		var err error
		if metrics, err = telemetry.New(serviceName, version.Version); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	dbOpts := cfg.DatabaseOptions()
	dbOpts.Logger = logging.StorageLog
	db, err := database.Open(ctx, dbOpts)
	if err != nil {
		_ = metrics.Shutdown(ctx)
		return nil, err
	}
	if opts.DatabaseFactory != nil {
		wrapped, err := opts.DatabaseFactory(ctx, db)
		if err != nil {
			_ = db.Close()
			_ = metrics.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create database via factory: %w", err)
		}
		db = wrapped
	}

	var registry service.RegistryService = service.NewRegistryService(db, service.WithMetrics(metrics))
	if opts.ServiceFactory != nil {
		registry = opts.ServiceFactory(registry)
	}
	if opts.OnServiceCreated != nil {
		opts.OnServiceCreated(registry)
	}

	if cfg.SeedBuiltin {
		created, err := seed.ImportBuiltinSeedData(ctx, registry)
		if err != nil {
			_ = db.Close()
			_ = metrics.Shutdown(ctx)
			return nil, fmt.Errorf("failed to seed builtin prompts: %w", err)
		}
		if created > 0 {
			log.Info("seeded builtin prompts", zap.Int("count", created))
		}
	}

	log.Info("registry initialized",
		zap.String("storage", cfg.Storage),
		zap.String("version", version.Version),
		zap.Bool("metrics", !cfg.DisableMetrics))

	return &App{cfg: cfg, opts: opts, db: db, metrics: metrics, registry: registry}, nil
}

// Registry returns the service, possibly extended by AppOptions.ServiceFactory.
func (a *App) Registry() service.RegistryService { return a.registry }

// NewHTTPServer builds the REST server without starting it.
func (a *App) NewHTTPServer() *api.Server {
	return api.NewServer(a.cfg, a.registry, a.metrics, nil, &router.RouteOptions{ExtraRoutes: a.opts.ExtraRoutes})
}

// ServeHTTP runs the REST API until ctx is cancelled, then drains
// in-flight requests.
func (a *App) ServeHTTP(ctx context.Context) error {
	return serveUntilDone(ctx, a.NewHTTPServer())
}

// ServeMCP exposes the registry as an MCP server over the configured
// transport. The stdio transport returns when the client disconnects.
func (a *App) ServeMCP(ctx context.Context) error {
	server := registryserver.NewServer(a.registry)

	switch a.cfg.MCPTransport {
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
		log.Info("starting MCP server", zap.String("transport", "http"), zap.String("address", a.cfg.MCPAddress))
		return serveUntilDone(ctx, &httpRunner{&http.Server{
			Addr:              a.cfg.MCPAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}})
	default:
		log.Info("starting MCP server", zap.String("transport", "stdio"))
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server stopped: %w", err)
		}
		return nil
	}
}

// Close releases storage and flushes metrics.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.db.Close(), a.metrics.Shutdown(ctx))
}

// Run starts the REST API, plus the MCP endpoint when the MCP transport is
// http, and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, opts *types.AppOptions) error {
	app, err := NewApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Warn("failed to close registry cleanly", zap.Error(err))
		}
	}()

	if cfg.MCPTransport != "http" {
		return app.ServeHTTP(ctx)
	}

	errs := make(chan error, 2)
	go func() { errs <- app.ServeHTTP(ctx) }()
	go func() { errs <- app.ServeMCP(ctx) }()
	return errors.Join(<-errs, <-errs)
}

type runner interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type httpRunner struct{ srv *http.Server }

func (r *httpRunner) Start() error {
	if err := r.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *httpRunner) Shutdown(ctx context.Context) error { return r.srv.Shutdown(ctx) }

func serveUntilDone(ctx context.Context, server runner) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return <-errCh
	}
}
