// Package fairness computes global dispersion metrics over per-driver
// workloads and decides whether an allocation is equitable enough to keep.
package fairness

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fairfleet/engine/core/model"
)

// Default acceptance thresholds.
const (
	DefaultGiniThreshold   = 0.25
	DefaultStdDevThreshold = 15.0
)

// Evaluator holds the configured acceptance thresholds.
type Evaluator struct {
	GiniThreshold   float64
	StdDevThreshold float64
}

// NewEvaluator returns an Evaluator, substituting defaults for negative
// thresholds. Zero is a valid, strictest setting and is kept as given.
func NewEvaluator(gini, stdDev float64) Evaluator {
	if gini < 0 {
		gini = DefaultGiniThreshold
	}
	if stdDev < 0 {
		stdDev = DefaultStdDevThreshold
	}
	return Evaluator{GiniThreshold: gini, StdDevThreshold: stdDev}
}

// Gini returns the Gini index of the workload distribution:
// (2*Σ(i*x_i))/(n*Σx_i) - (n+1)/n over ascending x with 1-based rank i.
// Defined as 0 for fewer than two values or a zero total. Invariant to
// uniform positive scaling; always within [0,1].
func Gini(workloads []float64) float64 {
	n := len(workloads)
	if n < 2 {
		return 0
	}
	total := 0.0
	for _, w := range workloads {
		total += w
	}
	if total == 0 {
		return 0
	}
	sorted := append([]float64(nil), workloads...)
	sort.Float64s(sorted)
	cumulative := 0.0
	for i, w := range sorted {
		cumulative += float64(i+1) * w
	}
	g := 2*cumulative/(float64(n)*total) - float64(n+1)/float64(n)
	return math.Max(0, math.Min(1, g))
}

// Score returns the per-driver fairness score 1 - |w-avg|/max(avg,1),
// clamped to [0,1]. A driver at exactly the average scores 1.
func Score(workload, avgWorkload float64) float64 {
	s := 1 - math.Abs(workload-avgWorkload)/math.Max(avgWorkload, 1)
	return math.Max(0, math.Min(1, s))
}

// Evaluate produces the fairness report for a set of assignments. Pure
// function; the verdict is ACCEPT iff both thresholds hold.
func (e Evaluator) Evaluate(assignments []model.Assignment) *model.FairnessReport {
	workloads := make([]float64, len(assignments))
	for i, a := range assignments {
		workloads[i] = a.Workload
	}

	report := &model.FairnessReport{PerDriver: make(map[string]float64, len(assignments))}
	if len(workloads) > 0 {
		report.AvgWorkload = stat.Mean(workloads, nil)
	}
	if len(workloads) > 1 {
		report.StdDev = math.Sqrt(stat.PopVariance(workloads, nil))
	}
	report.Gini = Gini(workloads)
	for _, a := range assignments {
		report.PerDriver[a.DriverID] = Score(a.Workload, report.AvgWorkload)
	}
	if report.Gini <= e.GiniThreshold && report.StdDev <= e.StdDevThreshold {
		report.Verdict = model.VerdictAccept
	} else {
		report.Verdict = model.VerdictReoptimize
	}
	return report
}
