// Package app contains the application setup for the catalog service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	appconfig "github.com/abgdnv/catalog/internal/config"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/internal/store"
	grpcImpl "github.com/abgdnv/catalog/internal/transport/grpc"
	"github.com/abgdnv/catalog/internal/transport/rest"
	"github.com/abgdnv/catalog/internal/validation"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/server"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
)

type Dependencies struct {
	ProductService service.ProductService
	Validator      *validation.Validator
	Health         *grpcImpl.Health
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// SetupDependencies builds the store once and wires it into the service.
func SetupDependencies(productStore store.ProductStore, publisher messaging.Publisher, meter metric.Meter, metricsHandler http.Handler, logger *slog.Logger) (*Dependencies, error) {
	pService, err := service.NewService(productStore, publisher, meter, logger.With("component", "service"))
	if err != nil {
		return nil, fmt.Errorf("failed to create product service: %w", err)
	}

	return &Dependencies{
		ProductService: pService,
		Validator:      validation.New(),
		Health:         grpcImpl.NewHealth(),
		MetricsHandler: metricsHandler,
		Logger:         logger,
	}, nil
}

// SetupHttpHandler initializes the router and routes of the catalog.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	productHandler := rest.NewHandler(deps.ProductService, deps.Validator, deps.Logger)
	productHandler.RegisterRoutes(mux)
	if deps.MetricsHandler != nil {
		mux.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
}

// SetupHttpServer creates the HTTP server. Every request gets a server span.
func SetupHttpServer(deps *Dependencies, cfg *appconfig.Config) *http.Server {
	handler := otelhttp.NewHandler(SetupHttpHandler(deps), appconfig.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return server.NewHTTPServer(cfg.HTTPServer, handler)
}

// SetupGrpcServer initializes the gRPC server with the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, deps.Health.Register)
}
