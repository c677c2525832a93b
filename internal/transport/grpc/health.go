// Package grpc exposes the catalog health over the standard gRPC health protocol.
package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health check service name of the catalog.
const ServiceName = "catalog.v1.ProductCatalog"

type Health struct {
	server *health.Server
}

// NewHealth creates a health server that reports SERVING for the catalog and the overall server.
func NewHealth() *Health {
	h := &Health{server: health.NewServer()}
	h.SetServing()
	return h
}

// Register is a server.RegistrationFunc.
func (h *Health) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.server)
}

func (h *Health) SetServing() {
	h.set(grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing is called first on shutdown so load balancers stop routing before servers close.
func (h *Health) SetNotServing() {
	h.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *Health) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
