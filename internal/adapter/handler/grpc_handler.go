package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RegisterService is the name probed by health checks for the register itself.
const RegisterService = "pos.Register"

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

// GRPCHandler exposes the standard health service so orchestrators can probe
// the register. Status follows the pingers given to Watch.
type GRPCHandler struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewGRPCHandler(logger *zap.Logger) *GRPCHandler {
	s := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RegisterService, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCHandler{server: s, health: hs, logger: logger}
}

func (h *GRPCHandler) Server() *grpc.Server {
	return h.server
}

// Check runs every pinger once and updates the register's serving status.
func (h *GRPCHandler) Check(ctx context.Context, pingers map[string]Pinger) bool {
	healthy := true
	for name, ping := range pingers {
		if err := ping(ctx); err != nil {
			healthy = false
			h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		}
	}

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !healthy {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(RegisterService, status)
	return healthy
}

// Watch re-runs Check every interval until ctx is done.
func (h *GRPCHandler) Watch(ctx context.Context, interval time.Duration, pingers map[string]Pinger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			h.Check(checkCtx, pingers)
			cancel()
		}
	}
}

// Shutdown marks every service NOT_SERVING and stops the server gracefully.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
