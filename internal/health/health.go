// Package health exposes the standard gRPC health service so orchestrators can
// probe the bot over GRPC_PORT.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "chatshop"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves grpc.health.v1 and flips between SERVING and NOT_SERVING based
// on periodic dependency checks.
type Server struct {
	grpc     *grpc.Server
	status   *grpchealth.Server
	checks   []Pinger
	interval time.Duration
	logger   *slog.Logger
}

// NewServer registers the health service. checks are probed every interval.
func NewServer(interval time.Duration, logger *slog.Logger, checks ...Pinger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &Server{
		grpc:     grpc.NewServer(),
		status:   grpchealth.NewServer(),
		checks:   checks,
		interval: interval,
		logger:   logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.status)
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.status.SetServingStatus("", status)
	s.status.SetServingStatus(ServiceName, status)
}

// Probe runs every check once and updates the reported status.
func (s *Server) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.status.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-ticker.C:
				s.Probe(ctx)
			}
		}
	}()

	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}
