// Package metrics defines the observability sinks the allocation engine
// records into. Implementations live under infra/metrics.
package metrics

import (
	"time"

	"github.com/fairfleet/engine/core/model"
)

// RunResult summarises one finalized allocation run.
type RunResult struct {
	RunID      string
	Status     model.RunStatus
	Gini       float64
	StdDev     float64
	Iterations int
	Drivers    int
	Packages   int
	Clusters   int
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records allocation outcomes for observability purposes.
type MetricsSink interface {
	RecordRunResult(res RunResult) error
}

// ReoptimizationEvent captures one reoptimization loop iteration.
type ReoptimizationEvent struct {
	RunID      string
	Iteration  int
	TargetSize int
	Gini       float64
	Unsolvable bool
	Time       time.Time
}

// ReoptimizationRecorder records reoptimization iterations.
type ReoptimizationRecorder interface {
	RecordReoptimization(ev ReoptimizationEvent) error
}

// EVRecoveryEvent captures the outcome of the EV range pass for one route.
type EVRecoveryEvent struct {
	RunID            string
	DriverID         string
	StationsInserted int
	Violation        bool
	Time             time.Time
}

// EVRecoveryRecorder records EV range recovery outcomes.
type EVRecoveryRecorder interface {
	RecordEVRecovery(ev EVRecoveryEvent) error
}

// AppealEvent captures the outcome of a driver appeal.
type AppealEvent struct {
	RunID    string
	DriverID string
	Resolved bool
	Time     time.Time
}

// AppealRecorder records appeal outcomes.
type AppealRecorder interface {
	RecordAppeal(ev AppealEvent) error
}

// NopSink implements every recorder interface with no-op methods.
type NopSink struct{}

func (NopSink) RecordRunResult(RunResult) error                { return nil }
func (NopSink) RecordReoptimization(ReoptimizationEvent) error { return nil }
func (NopSink) RecordEVRecovery(EVRecoveryEvent) error         { return nil }
func (NopSink) RecordAppeal(AppealEvent) error                 { return nil }
