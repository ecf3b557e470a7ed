package observability

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCHealthServer returns a gRPC server exposing the standard health
// service for the whole process ("") and for ServiceName.
func NewGRPCHealthServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	SetServingStatus(hs, true)
	return srv, hs
}

// SetServingStatus flips both registered service names.
func SetServingStatus(hs *health.Server, ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}

// SyncReadiness mirrors checker results into hs every interval until ctx ends,
// then marks the server as shutting down.
func SyncReadiness(ctx context.Context, hs *health.Server, checker *Checker, interval time.Duration) {
	logger := GetLogger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		ready, _ := checker.Check(checkCtx)
		cancel()

		if ready != last {
			logger.Info().Bool("ready", ready).Msg("gRPC health status changed")
			last = ready
		}
		SetServingStatus(hs, ready)

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
		}
	}
}
