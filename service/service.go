// Package service exposes the bridge's operational HTTP endpoints, a
// healthz probe and the prometheus metrics listener. They live for the
// whole CLI process, independent of individual test runs.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/editorkit/testbridge/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// Service bundles the two listeners so the CLI can bring them up and tear
// them down as one unit.
type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New() *Service {
	return &Service{
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
}

// Start brings both listeners up in the background. A bind failure is
// logged and counted, never fatal: the bridge still runs tests without its
// operational endpoints.
func (s *Service) Start(ctx context.Context) {
	go serve(ctx, "healthz", net.JoinHostPort(HealthzHost, HealthzPort), s.Healthz.Start)
	go serve(ctx, "metrics", net.JoinHostPort(MetricsHost, MetricsPort), s.Metrics.Start)
}

func serve(ctx context.Context, name, addr string, start func(context.Context, string) error) {
	log.Info("Starting server", "server", name, "addr", addr)
	if err := start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed", "server", name, "err", err)
		metrics.RecordErrorDetails("service."+name, err)
	}
}

// Shutdown stops both listeners. Safe to call when Start never ran.
func (s *Service) Shutdown() {
	if err := s.Healthz.Shutdown(); err != nil {
		log.Debug("Healthz shutdown", "err", err)
	}
	if err := s.Metrics.Shutdown(); err != nil {
		log.Debug("Metrics shutdown", "err", err)
	}
	log.Info("Service stopped")
}
