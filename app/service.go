// Package app wires configuration, metric sinks and the allocation engine
// into a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fairfleet/engine/config"
	"github.com/fairfleet/engine/core/allocator"
	"github.com/fairfleet/engine/core/appeal"
	"github.com/fairfleet/engine/core/fairness"
	coremetrics "github.com/fairfleet/engine/core/metrics"
	"github.com/fairfleet/engine/core/model"
	"github.com/fairfleet/engine/infra/logger"
	"github.com/fairfleet/engine/infra/metrics"
	"github.com/fairfleet/engine/internal/eventbus"
)

// Service orchestrates the allocation engine and its collaborators.
type Service struct {
	Engine   *allocator.Engine
	Resolver appeal.Resolver

	bus         *eventbus.TypedBus[*model.AllocationRun]
	log         logger.Logger
	sink        coremetrics.MetricsSink
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	engine, err := allocator.New(cfg.Allocator, logger.New("allocator"), sink)
	if err != nil {
		return nil, fmt.Errorf("allocation engine: %w", err)
	}

	mb := allocator.MatrixBuilder(cfg.Allocator)
	eval := fairness.NewEvaluator(cfg.Allocator.Thresholds())
	svc := &Service{
		Engine:      engine,
		Resolver:    appeal.NewResolver(cfg.Appeal.Tolerance, mb, eval),
		bus:         eventbus.NewTyped[*model.AllocationRun](),
		log:         logg,
		sink:        sink,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	return svc, nil
}

// Allocate runs one allocation and publishes the finalized run on the
// internal bus for export/summary subscribers.
func (s *Service) Allocate(ctx context.Context, req allocator.Request) (*model.AllocationRun, error) {
	run, err := s.Engine.Allocate(ctx, req)
	if run != nil {
		s.bus.Publish(run)
	}
	return run, err
}

// Appeal resolves a driver objection against a finalized run and records
// the outcome. ErrNoImprovement passes through untouched.
func (s *Service) Appeal(run *model.AllocationRun, obj appeal.Objection, drivers []model.Driver) (*appeal.Proposal, error) {
	proposal, err := s.Resolver.Resolve(run, obj, drivers)
	if s.sink != nil {
		if rec, ok := s.sink.(coremetrics.AppealRecorder); ok {
			_ = rec.RecordAppeal(coremetrics.AppealEvent{
				RunID: run.ID, DriverID: obj.DriverID, Resolved: err == nil, Time: time.Now(),
			})
		}
	}
	return proposal, err
}

// Runs exposes the finalized-run stream.
func (s *Service) Runs() <-chan *model.AllocationRun { return s.bus.Subscribe() }

// StartMetrics starts the Prometheus endpoint when enabled. Blocks until
// the context is cancelled.
func (s *Service) StartMetrics(ctx context.Context) error {
	if !s.promEnabled {
		<-ctx.Done()
		return nil
	}
	return metrics.StartPromServer(ctx, ":"+s.promPort)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
