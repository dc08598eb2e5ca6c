// Package grpc hosts the service's gRPC health endpoint.
package grpc

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tutor-chat/internal/observability"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthServer serves grpc.health.v1. The overall status ("") is SERVING
// only while every named check passes; each check is also exposed under
// its own service name.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration

	stopOnce sync.Once
}

// NewHealthServer builds the server. Checks run every interval once Run is
// called.
func NewHealthServer(checks map[string]Check, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	s := &HealthServer{server: server, health: hs, checks: checks, interval: interval}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	log.Printf("grpc health listening addr=%s", lis.Addr())
	return s.server.Serve(lis)
}

// Refresh runs every check once and updates the reported statuses.
func (s *HealthServer) Refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			log.Printf("health check failed: name=%s err=%v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// Run refreshes statuses until ctx is done.
func (s *HealthServer) Run(ctx context.Context) {
	s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Stop marks everything NOT_SERVING and stops the server gracefully.
func (s *HealthServer) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		s.server.GracefulStop()
	})
}
