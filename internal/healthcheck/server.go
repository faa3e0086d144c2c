// Package healthcheck serves the standard gRPC health protocol for
// orchestrator probes, backed by periodic dependency checks.
package healthcheck

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name covering the whole process.
const ServiceName = "storefront"

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probes map[string]Probe
	names  []string
	log    logrus.FieldLogger

	mu     sync.Mutex
	failed map[string]bool
}

func NewServer(probes map[string]Probe, log logrus.FieldLogger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health: health.NewServer(),
		probes: probes,
		log:    log.WithField("component", "healthcheck"),
		failed: make(map[string]bool),
	}
	for name := range probes {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	healthpb.RegisterHealthServer(s.grpc, s.health)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Run probes every dependency once, then again on each tick, until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check runs all probes and publishes their results. Each probe is reported
// under its own service name; the process is serving only when all pass.
func (s *Server) Check(ctx context.Context) {
	serving := true
	for _, name := range s.names {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.probes[name](probeCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			serving = false
		}
		s.health.SetServingStatus(name, status)
		s.logTransition(name, err)
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)
}

func (s *Server) logTransition(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.failed[name]
	s.failed[name] = err != nil
	switch {
	case err != nil && !was:
		s.log.WithError(err).WithField("probe", name).Warn("dependency unhealthy")
	case err == nil && was:
		s.log.WithField("probe", name).Info("dependency recovered")
	}
}

// Stop marks every service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
