// Package grpc exposes the standard gRPC health service for setbench.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/setbench/setbench/internal/logging"
)

// ServiceName is the health-checked service name. The empty name reports the
// same status.
const ServiceName = "setbench"

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates a server whose status starts as NOT_SERVING.
func NewServer(logger *slog.Logger) *Server {
	logger = logging.OrDefault(logger)
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips the reported status.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Close.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health service listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// Close marks every service NOT_SERVING and stops gracefully, forcing the
// stop after 5s.
func (s *Server) Close() error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.srv.Stop()
	}
	return nil
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	var size int
	if m, ok := req.(proto.Message); ok {
		size = proto.Size(m)
	}
	logging.FromContext(ctx, s.logger).Debug("grpc call",
		"method", info.FullMethod,
		"request_bytes", size,
		"request_id", extractRequestID(ctx),
		"code", status.Code(err).String(),
		"elapsed", time.Since(start))
	return resp, err
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}
