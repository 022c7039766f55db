// Package allocator wires the pipeline stages into the fair allocation
// engine: cluster, score, solve, evaluate, and reoptimize until the
// fairness thresholds hold or the iteration budget runs out.
package allocator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fairfleet/engine/core/assign"
	"github.com/fairfleet/engine/core/cluster"
	"github.com/fairfleet/engine/core/costmatrix"
	"github.com/fairfleet/engine/core/evrecovery"
	"github.com/fairfleet/engine/core/fairness"
	"github.com/fairfleet/engine/core/logger"
	"github.com/fairfleet/engine/core/metrics"
	"github.com/fairfleet/engine/core/model"
)

// Engine runs complete allocation runs. It is safe to share across
// concurrent runs: all per-run state lives in the AllocationRun.
type Engine struct {
	cfg    Config
	matrix costmatrix.Builder
	solver assign.Solver
	eval   fairness.Evaluator
	log    logger.Logger
	sink   metrics.MetricsSink
}

// New validates the configuration and returns an Engine. A nil sink
// disables metrics recording.
func New(cfg Config, log logger.Logger, sink metrics.MetricsSink) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	mb := costmatrix.NewBuilder(cfg.Weights(), cfg.EVParams())
	return &Engine{
		cfg:    cfg,
		matrix: mb,
		solver: assign.Solver{Matrix: mb},
		eval:   fairness.NewEvaluator(cfg.Thresholds()),
		log:    log,
		sink:   sink,
	}, nil
}

// iteration holds the outcome of one cluster/score/solve/evaluate pass.
type iteration struct {
	clusters    []model.Cluster
	assignments []model.Assignment
	report      *model.FairnessReport
}

// Allocate runs the full pipeline for one request. The returned run is
// frozen and carries status SUCCESS, ACCEPTED_WITH_WARNING or FAILED; a
// FAILED run is accompanied by ErrInfeasible. Validation failures are
// rejected before a run is created.
func (e *Engine) Allocate(ctx context.Context, req Request) (*model.AllocationRun, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	run := &model.AllocationRun{
		ID:        uuid.NewString(),
		Date:      req.Date,
		Warehouse: req.Warehouse,
		Status:    model.RunFailed,
	}
	e.log.Infof("run %s: allocating %d packages to %d drivers", run.ID, len(req.Packages), len(req.Drivers))

	best, accepted := e.reoptimize(ctx, run, req)
	if best == nil {
		run.Freeze()
		e.record(run, req, start)
		return run, ErrInfeasible
	}

	status := model.RunSuccess
	if !accepted {
		status = model.RunAcceptedWithWarning
		run.AddNote("fairness thresholds not met after %d iterations, keeping best result (gini %.4f)",
			run.Iterations, best.report.Gini)
	}

	// Post-acceptance EV range pass. Ownership never changes here.
	rec := evrecovery.New(e.matrix.Weights, e.matrix.EV, req.ChargingStations, e.log)
	assignments, outcomes := rec.Recover(best.assignments, req.Drivers, req.Warehouse)
	for _, oc := range outcomes {
		if oc.Violation {
			status = model.RunAcceptedWithWarning
			run.AddNote("driver %s: EV_RANGE_VIOLATION, route exceeds range and no charging station is reachable", oc.DriverID)
		} else {
			run.AddNote("driver %s: inserted %d charging stop(s)", oc.DriverID, oc.StationsInserted)
		}
		if rr, ok := e.sink.(metrics.EVRecoveryRecorder); ok {
			_ = rr.RecordEVRecovery(metrics.EVRecoveryEvent{
				RunID: run.ID, DriverID: oc.DriverID,
				StationsInserted: oc.StationsInserted, Violation: oc.Violation, Time: time.Now(),
			})
		}
	}

	// Recovery may have re-scored workloads; the final report reflects the
	// routes the drivers will actually run. The verdict stays the one the
	// loop accepted on: recovery never loops back into reoptimization.
	report := e.eval.Evaluate(assignments)
	report.Verdict = best.report.Verdict
	for i := range assignments {
		assignments[i].ID = uuid.NewString()
		assignments[i].FairnessScore = report.PerDriver[assignments[i].DriverID]
	}
	if err := run.SetResult(best.clusters, assignments, report); err != nil {
		return nil, err
	}
	run.Status = status
	run.Freeze()
	e.record(run, req, start)
	e.log.Infof("run %s finalized: %s, gini %.4f, %d iteration(s)", run.ID, run.Status, report.Gini, run.Iterations)
	return run, nil
}

// reoptimize runs stages 2-4 up to the configured iteration budget,
// shrinking the target cluster size on every REOPTIMIZE or unsolvable
// verdict. It returns the accepting iteration as soon as one passes both
// thresholds; rejected iterations are tracked by lowest Gini so exhaustion
// still yields the fairest feasible result. Context cancellation stops the
// loop between iterations.
func (e *Engine) reoptimize(ctx context.Context, run *model.AllocationRun, req Request) (best *iteration, accepted bool) {
	target := e.cfg.TargetPackagesPerRoute
	for it := 1; it <= e.cfg.MaxReoptIterations; it++ {
		if ctx.Err() != nil {
			e.log.Warnf("run %s: cancelled during iteration %d, returning best-seen result", run.ID, it)
			return best, false
		}
		run.Iterations = it

		clusters, err := cluster.NewBuilder(target).Build(req.Packages, req.Warehouse)
		if err != nil {
			// Only possible with zero packages, which validation rejects.
			e.log.Errorf("run %s: cluster build failed: %v", run.ID, err)
			return best, false
		}
		m := e.matrix.Build(req.Drivers, clusters, req.Warehouse)
		assignments, err := e.solver.Solve(req.Drivers, clusters, m, req.Warehouse)
		if err != nil {
			if !errors.Is(err, assign.ErrUnsolvable) {
				e.log.Errorf("run %s: solver failed: %v", run.ID, err)
				return best, false
			}
			e.log.Warnf("run %s: iteration %d unsolvable at target size %d, re-clustering", run.ID, it, target)
			e.recordReopt(run.ID, it, target, 0, true)
			target = e.shrink(target)
			continue
		}

		report := e.eval.Evaluate(assignments)
		e.log.Debugw("iteration evaluated", map[string]any{
			"run_id": run.ID, "iteration": it, "target_size": target,
			"gini": report.Gini, "std_dev": report.StdDev, "verdict": report.Verdict.String(),
		})
		if report.Verdict == model.VerdictAccept {
			// The accepting iteration is the result. An earlier iteration
			// may hold a lower Gini, but it failed a threshold; best-seen
			// only backs the exhaustion path.
			return &iteration{clusters: clusters, assignments: assignments, report: report}, true
		}
		if best == nil || report.Gini < best.report.Gini {
			best = &iteration{clusters: clusters, assignments: assignments, report: report}
		}
		e.recordReopt(run.ID, it, target, report.Gini, false)
		target = e.shrink(target)
	}
	return best, false
}

func (e *Engine) shrink(target int) int {
	target -= e.cfg.ReoptShrinkStep
	if target < 1 {
		target = 1
	}
	return target
}

func (e *Engine) recordReopt(runID string, it, target int, gini float64, unsolvable bool) {
	if rr, ok := e.sink.(metrics.ReoptimizationRecorder); ok {
		_ = rr.RecordReoptimization(metrics.ReoptimizationEvent{
			RunID: runID, Iteration: it, TargetSize: target,
			Gini: gini, Unsolvable: unsolvable, Time: time.Now(),
		})
	}
}

func (e *Engine) record(run *model.AllocationRun, req Request, start time.Time) {
	res := metrics.RunResult{
		RunID:      run.ID,
		Status:     run.Status,
		Iterations: run.Iterations,
		Drivers:    len(req.Drivers),
		Packages:   len(req.Packages),
		Clusters:   len(run.Clusters),
		Duration:   time.Since(start),
		Time:       time.Now(),
	}
	if run.Report != nil {
		res.Gini = run.Report.Gini
		res.StdDev = run.Report.StdDev
	}
	if err := e.sink.RecordRunResult(res); err != nil {
		e.log.Warnf("run %s: metrics sink: %v", run.ID, err)
	}
}
