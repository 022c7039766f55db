package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Verdict is the fairness evaluator's decision for one iteration.
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictReoptimize
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	if v == VerdictAccept {
		return "ACCEPT"
	}
	return "REOPTIMIZE"
}

// MarshalJSON encodes the verdict as its wire string.
func (v Verdict) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// FairnessReport aggregates the dispersion metrics over per-driver
// workloads for one iteration. The final copy is attached to the run.
type FairnessReport struct {
	AvgWorkload float64            `json:"avg_workload"`
	StdDev      float64            `json:"std_dev"`
	Gini        float64            `json:"gini_index"`
	PerDriver   map[string]float64 `json:"per_driver"`
	Verdict     Verdict            `json:"verdict"`
}

// RunStatus is the caller-visible outcome of a finalized run.
type RunStatus string

const (
	RunSuccess             RunStatus = "SUCCESS"
	RunAcceptedWithWarning RunStatus = "ACCEPTED_WITH_WARNING"
	RunFailed              RunStatus = "FAILED"
)

// ErrRunFrozen is returned when mutating a finalized run.
var ErrRunFrozen = errors.New("allocation run is frozen")

// AllocationRun owns the full state of one allocation: clusters,
// assignments and the final fairness report. It is mutated through the
// pipeline stages and frozen once finalized or failed.
type AllocationRun struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Warehouse   Coordinate      `json:"warehouse"`
	Clusters    []Cluster       `json:"clusters"`
	Assignments []Assignment    `json:"assignments"`
	Report      *FairnessReport `json:"fairness_report,omitempty"`
	Status      RunStatus       `json:"status"`
	Iterations  int             `json:"iterations"`
	Notes       []string        `json:"notes,omitempty"`

	frozen bool
}

// Freeze marks the run read-only. Further SetResult calls fail.
func (r *AllocationRun) Freeze() { r.frozen = true }

// Frozen reports whether the run has been finalized.
func (r *AllocationRun) Frozen() bool { return r.frozen }

// SetResult installs the outcome of one pipeline iteration.
func (r *AllocationRun) SetResult(clusters []Cluster, assignments []Assignment, report *FairnessReport) error {
	if r.frozen {
		return ErrRunFrozen
	}
	r.Clusters = clusters
	r.Assignments = assignments
	r.Report = report
	return nil
}

// AddNote appends a human-readable remark, e.g. an EV recovery outcome.
func (r *AllocationRun) AddNote(format string, args ...any) {
	if r.frozen {
		return
	}
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// AssignmentFor returns the assignment owned by the given driver, if any.
func (r *AllocationRun) AssignmentFor(driverID string) (Assignment, bool) {
	for _, a := range r.Assignments {
		if a.DriverID == driverID {
			return a, true
		}
	}
	return Assignment{}, false
}
