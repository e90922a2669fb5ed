// Package server assembles the gRPC and HTTP servers.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "proctor-integrity/backend/internal/health/handler"
)

// NewGRPCServer returns a gRPC server traced with otelgrpc and serving grpc.health.v1 backed by checker.
func NewGRPCServer(checker healthhandler.ReadinessChecker, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, checker)
	return s
}

// RegisterServices registers the gRPC services with s.
//
// Proto → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, checker healthhandler.ReadinessChecker) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(checker))
}
