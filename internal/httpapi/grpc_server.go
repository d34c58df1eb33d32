package httpapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"postline.dev/internal/obs"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// HealthServer serves grpc.health.v1 with a status driven by the readiness
// probe. Both the overall ("") and the named service status are kept in sync.
type HealthServer struct {
	*health.Server
	readiness readinessChecker
	logger    *slog.Logger
}

func NewHealthServer(r readinessChecker, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = obs.Logger()
	}
	h := &HealthServer{
		Server:    health.NewServer(),
		readiness: r,
		logger:    logger,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Refresh runs the readiness probe once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.readiness.Check(ctx); err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(status)
	return status
}

// Run refreshes every interval until ctx is done, then marks everything
// NOT_SERVING for good.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			obs.SetReady(false)
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", status)
	h.SetServingStatus(serviceName, status)
	obs.SetReady(status == healthpb.HealthCheckResponse_SERVING)
}

// NewGRPCServer returns a server exposing the health service.
func NewGRPCServer(h *HealthServer, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.Server)
	return s
}
