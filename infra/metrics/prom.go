package metrics

import (
	"strconv"

	coremetrics "github.com/fairfleet/engine/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records allocation events in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	gini       prometheus.Histogram
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	reopts     *prometheus.CounterVec
	violations prometheus.Counter
	appeals    *prometheus.CounterVec
}

// NewPromSink registers allocation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_runs_total",
			Help: "Total number of finalized allocation runs",
		}, []string{"status"}),
		gini: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_gini_index",
			Help:    "Final Gini index per allocation run",
			Buckets: prometheus.LinearBuckets(0, 0.05, 11),
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_reopt_iterations",
			Help:    "Pipeline iterations needed per run",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "allocation_duration_seconds",
			Help:    "Wall-clock duration of allocation runs",
			Buckets: prometheus.DefBuckets,
		}),
		reopts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_reoptimizations_total",
			Help: "Reoptimization iterations by trigger",
		}, []string{"unsolvable"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_ev_range_violations_total",
			Help: "Routes flagged EV_RANGE_VIOLATION",
		}),
		appeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_appeals_total",
			Help: "Appeal resolutions by outcome",
		}, []string{"resolved"}),
	}

	for _, c := range []prometheus.Collector{s.runs, s.gini, s.iterations, s.duration, s.reopts, s.violations, s.appeals} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordRunResult records the outcome of one finalized run.
func (s *PromSink) RecordRunResult(res coremetrics.RunResult) error {
	s.runs.WithLabelValues(string(res.Status)).Inc()
	s.gini.Observe(res.Gini)
	s.iterations.Observe(float64(res.Iterations))
	s.duration.Observe(res.Duration.Seconds())
	return nil
}

// RecordReoptimization counts reoptimization iterations.
func (s *PromSink) RecordReoptimization(ev coremetrics.ReoptimizationEvent) error {
	s.reopts.WithLabelValues(strconv.FormatBool(ev.Unsolvable)).Inc()
	return nil
}

// RecordEVRecovery counts EV range violations.
func (s *PromSink) RecordEVRecovery(ev coremetrics.EVRecoveryEvent) error {
	if ev.Violation {
		s.violations.Inc()
	}
	return nil
}

// RecordAppeal counts appeal outcomes.
func (s *PromSink) RecordAppeal(ev coremetrics.AppealEvent) error {
	s.appeals.WithLabelValues(strconv.FormatBool(ev.Resolved)).Inc()
	return nil
}
