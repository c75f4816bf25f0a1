// Package admin exposes the standard gRPC health service and server
// reflection for operators and orchestrators.
package admin

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cory-johannsen/omok/internal/config"
)

// probeTimeout bounds a single dependency probe.
const probeTimeout = 5 * time.Second

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Server serves grpc.health.v1.Health. Each probe is published as its own
// service name; the overall ("") status is SERVING only while every probe passes.
type Server struct {
	cfg    config.AdminConfig
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	probes   map[string]Probe
	listener net.Listener
}

// NewServer creates an admin Server with health and reflection registered.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.AdminConfig, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		probes: make(map[string]Probe),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	return s
}

// AddProbe registers a dependency probe under service.
func (s *Server) AddProbe(service string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[service] = p
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
}

// Check runs every probe and publishes the results. Its signature fits
// server.PeriodicService ticks.
func (s *Server) Check(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(s.probes))
	for k, v := range s.probes {
		probes[k] = v
	}
	s.mu.Unlock()
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probes[name](pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.logger.Warn("health probe failed", zap.String("service", name), zap.Error(err))
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

// ListenAndServe starts the gRPC listener. It blocks until Stop is called.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("admin gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
