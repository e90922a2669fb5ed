package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name reported alongside the overall "" service.
const ServiceName = "proctor.ingest"

// ReadinessChecker reports whether the service's dependencies are ready.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for Kubernetes, load balancers and CI.
// Watch and List are left unimplemented.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker ReadinessChecker
}

// NewServer returns a health server. A nil checker always reports SERVING.
func NewServer(checker ReadinessChecker) *Server {
	return &Server{checker: checker}
}

// Check answers NOT_SERVING when a dependency check fails; it never returns a gRPC error for that.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if s.checker != nil {
		if err := s.checker.Check(ctx); err != nil {
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
