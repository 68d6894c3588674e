// Package api assembles the HTTP server for the prompt registry.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	versionapi "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/api"
	"github.com/agentregistry-dev/promptregistry/internal/registry/api/router"
	"github.com/agentregistry-dev/promptregistry/internal/registry/config"
	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/registry/telemetry"
	"github.com/agentregistry-dev/promptregistry/internal/version"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Server is the registry HTTP server.
type Server struct {
	cfg        *config.Config
	mux        *http.ServeMux
	api        huma.API
	handler    http.Handler
	httpServer *http.Server
}

var _ types.Server = (*Server)(nil)

// NewHumaConfig returns the shared Huma configuration for the registry API.
func NewHumaConfig(apiVersion string) huma.Config {
	humaConfig := huma.DefaultConfig("Prompt Registry", apiVersion)
	humaConfig.Info.Description = "Prompt Registry API for storing, versioning and rendering prompts."
	// Disable $schema property injection in responses
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	return humaConfig
}

// NewServer creates the HTTP server with every route registered.
func NewServer(
	cfg *config.Config,
	registry service.RegistryService,
	metrics *telemetry.Metrics,
	versionInfo *versionapi.VersionBody,
	opts *router.RouteOptions,
) *Server {
	if versionInfo == nil {
		versionInfo = &versionapi.VersionBody{Version: version.Version, BuildTime: version.BuildDate, GitCommit: version.GitCommit}
	}
	mux := http.NewServeMux()
	humaAPI := humago.New(mux, NewHumaConfig(versionInfo.Version))

	router.RegisterRoutes(humaAPI, registry, versionInfo, opts)
	mux.Handle("GET /metrics", metrics.Handler())

	parsed := logging.ParseEventLoggingConfig(&cfg.EventLogging)

	var handler http.Handler = mux
	handler = requestLogger(handler, parsed)
	handler = otelhttp.NewHandler(handler, "promptregistry",
		otelhttp.WithMeterProvider(metrics.MeterProvider()),
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" }),
	)
	handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler(handler)

	return &Server{
		cfg:     cfg,
		mux:     mux,
		api:     humaAPI,
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) HumaAPI() huma.API { return s.api }

func (s *Server) Mux() *http.ServeMux { return s.mux }

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	logging.APIEventLog.Info("starting HTTP server", zap.String("address", s.cfg.HTTPAddress))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger assigns a request id and logs one event per request.
// Excluded paths are never logged; error-only paths are logged on failure.
func requestLogger(next http.Handler, cfg *logging.ParsedEventLoggingConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		ctx := logging.SetRequestID(r.Context(), reqID)

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		path := r.URL.Path
		if cfg.ExcludePaths[path] || (cfg.ErrorOnlyPaths[path] && rec.status < 400) {
			return
		}
		logging.Log(ctx, logging.APIEventLog, logging.EventLevelFromStatusCode(rec.status), "request completed",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}
