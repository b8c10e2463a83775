package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether one dependency is reachable.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Server struct {
	log    *slog.Logger
	gs     *grpc.Server
	health *health.Server
	checks []Check
}

func New(log *slog.Logger, checks ...Check) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{log: log, gs: gs, health: hs, checks: checks}
}

func (s *Server) Run(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.gs.Serve(lis); err != nil {
			s.log.Error("grpc server stopped", "err", err)
		}
	}()
	s.log.Info("grpc listening", "addr", addr)
	return nil
}

// Watch re-runs the checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Fn(cctx)
		cancel()
		if err != nil {
			s.log.Warn("health check failed", "check", c.Name, "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Stop marks the service as shutting down and drains in-flight calls.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.gs.Stop()
		return ctx.Err()
	}
}
