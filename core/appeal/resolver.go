// Package appeal resolves a driver's objection to a finalized allocation
// with a single, low-disruption local repair: one cluster swap or one
// package transfer. It never re-runs the full pipeline and never mutates
// the frozen run; it produces a proposed assignment set the caller may
// commit under a single-writer-per-run discipline.
package appeal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fairfleet/engine/core/cluster"
	"github.com/fairfleet/engine/core/costmatrix"
	"github.com/fairfleet/engine/core/fairness"
	"github.com/fairfleet/engine/core/model"
)

// ErrNoImprovement is the non-fatal outcome when no acceptable local move
// exists. The run itself stays valid.
var ErrNoImprovement = errors.New("no improvement found")

// DefaultTolerance is the maximum fraction by which the total workload may
// grow for a move to be acceptable.
const DefaultTolerance = 0.02

// Objection is a driver's appeal against their assignment.
type Objection struct {
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason"`
}

// Move kinds recorded on a proposal.
const (
	MoveSwap     = "SWAP"
	MoveTransfer = "TRANSFER"
)

// Proposal is the suggested replacement assignment set. The caller decides
// whether to commit it.
type Proposal struct {
	Kind      string `json:"kind"`
	PartnerID string `json:"partner_id"`
	PackageID string `json:"package_id,omitempty"`
	// Clusters holds the replacement clusters a TRANSFER creates for the
	// two affected drivers; their IDs are fresh and referenced by the
	// proposed assignments. Empty for a SWAP, which only trades ownership
	// of existing clusters.
	Clusters    []model.Cluster       `json:"clusters,omitempty"`
	Assignments []model.Assignment    `json:"assignments"`
	Report      *model.FairnessReport `json:"fairness_report"`
}

// Resolver searches for the first acceptable local move.
type Resolver struct {
	Tolerance float64
	Matrix    costmatrix.Builder
	Eval      fairness.Evaluator
}

// NewResolver returns a Resolver, substituting the default tolerance when
// the argument is not positive.
func NewResolver(tolerance float64, matrix costmatrix.Builder, eval fairness.Evaluator) Resolver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Resolver{Tolerance: tolerance, Matrix: matrix, Eval: eval}
}

// Resolve evaluates cluster swaps with every other driver, then single
// package transfers, and returns the first move that strictly lowers the
// objector's workload without growing the total beyond the tolerance or
// creating new infeasibility. First improvement wins; latency stays
// bounded and already-communicated routes stay mostly intact.
func (r Resolver) Resolve(run *model.AllocationRun, obj Objection, drivers []model.Driver) (*Proposal, error) {
	byID := make(map[string]model.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}
	clusters := make(map[int]model.Cluster, len(run.Clusters))
	for _, c := range run.Clusters {
		clusters[c.ID] = c
	}

	objIdx := -1
	for i, a := range run.Assignments {
		if a.DriverID == obj.DriverID {
			objIdx = i
			break
		}
	}
	if objIdx < 0 {
		return nil, fmt.Errorf("driver %s has no assignment in run %s", obj.DriverID, run.ID)
	}
	objDriver, ok := byID[obj.DriverID]
	if !ok {
		return nil, fmt.Errorf("driver %s not in driver list", obj.DriverID)
	}

	totalBefore := 0.0
	for _, a := range run.Assignments {
		totalBefore += a.Workload
	}
	budget := totalBefore * (1 + r.Tolerance)
	objOld := run.Assignments[objIdx].Workload

	if p := r.trySwaps(run, objIdx, objDriver, byID, clusters, objOld, totalBefore, budget); p != nil {
		return p, nil
	}
	if p := r.tryTransfer(run, objIdx, objDriver, byID, clusters, objOld, totalBefore, budget); p != nil {
		return p, nil
	}
	return nil, ErrNoImprovement
}

func (r Resolver) trySwaps(run *model.AllocationRun, objIdx int, objDriver model.Driver, byID map[string]model.Driver, clusters map[int]model.Cluster, objOld, totalBefore, budget float64) *Proposal {
	objAsn := run.Assignments[objIdx]
	for i, other := range run.Assignments {
		if i == objIdx {
			continue
		}
		otherDriver, ok := byID[other.DriverID]
		if !ok {
			continue
		}
		objNew, ok1 := r.setWorkload(objDriver, other.ClusterIDs, clusters, run.Warehouse)
		otherNew, ok2 := r.setWorkload(otherDriver, objAsn.ClusterIDs, clusters, run.Warehouse)
		if !ok1 || !ok2 || objNew >= objOld {
			continue
		}
		if totalBefore-objOld-other.Workload+objNew+otherNew > budget {
			continue
		}

		proposed := cloneAll(run.Assignments)
		proposed[objIdx].ClusterIDs = append([]int(nil), other.ClusterIDs...)
		proposed[objIdx].Workload = objNew
		proposed[i].ClusterIDs = append([]int(nil), objAsn.ClusterIDs...)
		proposed[i].Workload = otherNew
		rebuildRoute(&proposed[objIdx], clusters, run.Warehouse)
		rebuildRoute(&proposed[i], clusters, run.Warehouse)
		return r.finish(MoveSwap, other.DriverID, "", proposed, nil)
	}
	return nil
}

// tryTransfer moves the objector's lightest package to the least loaded
// driver that can feasibly absorb it.
func (r Resolver) tryTransfer(run *model.AllocationRun, objIdx int, objDriver model.Driver, byID map[string]model.Driver, clusters map[int]model.Cluster, objOld, totalBefore, budget float64) *Proposal {
	objPkgs := setPackages(run.Assignments[objIdx].ClusterIDs, clusters)
	if len(objPkgs) < 2 {
		return nil
	}
	lightest := 0
	for i, p := range objPkgs {
		if p.WeightKg < objPkgs[lightest].WeightKg {
			lightest = i
		}
	}
	moved := objPkgs[lightest]
	keep := append(append([]model.Package(nil), objPkgs[:lightest]...), objPkgs[lightest+1:]...)

	order := make([]int, 0, len(run.Assignments))
	for i := range run.Assignments {
		if i != objIdx {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return run.Assignments[order[a]].Workload < run.Assignments[order[b]].Workload
	})

	for _, i := range order {
		other := run.Assignments[i]
		otherDriver, ok := byID[other.DriverID]
		if !ok {
			continue
		}
		receiving := append(setPackages(other.ClusterIDs, clusters), moved)
		objNew, ok1 := r.packagesWorkload(objDriver, keep, run.Warehouse)
		otherNew, ok2 := r.packagesWorkload(otherDriver, receiving, run.Warehouse)
		if !ok1 || !ok2 || objNew >= objOld {
			continue
		}
		if totalBefore-objOld-other.Workload+objNew+otherNew > budget {
			continue
		}

		// The transfer invalidates both parties' old clusters: replace them
		// with fresh ones so committed summaries never double-count the
		// moved package.
		nextID := 0
		for id := range clusters {
			if id >= nextID {
				nextID = id + 1
			}
		}
		keepCluster, ok1 := syntheticCluster(nextID, keep, run.Warehouse)
		recvCluster, ok2 := syntheticCluster(nextID+1, receiving, run.Warehouse)
		if !ok1 || !ok2 {
			continue
		}

		proposed := cloneAll(run.Assignments)
		proposed[objIdx].ClusterIDs = []int{keepCluster.ID}
		proposed[objIdx].Workload = objNew
		proposed[i].ClusterIDs = []int{recvCluster.ID}
		proposed[i].Workload = otherNew
		rebuildRouteFromPackages(&proposed[objIdx], keep, run.Warehouse)
		rebuildRouteFromPackages(&proposed[i], receiving, run.Warehouse)
		return r.finish(MoveTransfer, other.DriverID, moved.ID, proposed, []model.Cluster{keepCluster, recvCluster})
	}
	return nil
}

func (r Resolver) finish(kind, partner, pkgID string, proposed []model.Assignment, created []model.Cluster) *Proposal {
	report := r.Eval.Evaluate(proposed)
	for i := range proposed {
		proposed[i].FairnessScore = report.PerDriver[proposed[i].DriverID]
	}
	return &Proposal{Kind: kind, PartnerID: partner, PackageID: pkgID, Clusters: created, Assignments: proposed, Report: report}
}

// setWorkload scores a driver carrying the given cluster set. Feasibility
// requires every cell to be feasible and the combined weight to fit.
func (r Resolver) setWorkload(d model.Driver, clusterIDs []int, clusters map[int]model.Cluster, warehouse model.Coordinate) (float64, bool) {
	total := 0.0
	weight := 0.0
	for _, ci := range clusterIDs {
		c, ok := clusters[ci]
		if !ok {
			return 0, false
		}
		score, feasible := r.Matrix.Score(d, c, warehouse)
		if !feasible {
			return 0, false
		}
		total += score
		weight += c.TotalWeightKg
	}
	if weight > d.CapacityKg {
		return 0, false
	}
	return total, true
}

// packagesWorkload scores a driver carrying an ad-hoc package set by
// rebuilding a single cluster over it.
func (r Resolver) packagesWorkload(d model.Driver, pkgs []model.Package, warehouse model.Coordinate) (float64, bool) {
	if len(pkgs) == 0 {
		return 0, true
	}
	c, ok := syntheticCluster(0, pkgs, warehouse)
	if !ok {
		return 0, false
	}
	return r.Matrix.Score(d, c, warehouse)
}

// syntheticCluster regroups an ad-hoc package set into a single cluster
// carrying the given ID.
func syntheticCluster(id int, pkgs []model.Package, warehouse model.Coordinate) (model.Cluster, bool) {
	cs, err := cluster.NewBuilder(len(pkgs)).Build(pkgs, warehouse)
	if err != nil || len(cs) != 1 {
		return model.Cluster{}, false
	}
	c := cs[0]
	c.ID = id
	return c, true
}

func setPackages(clusterIDs []int, clusters map[int]model.Cluster) []model.Package {
	var pkgs []model.Package
	for _, ci := range clusterIDs {
		pkgs = append(pkgs, clusters[ci].Packages...)
	}
	return pkgs
}

func cloneAll(assignments []model.Assignment) []model.Assignment {
	out := make([]model.Assignment, len(assignments))
	for i, a := range assignments {
		out[i] = a.Clone()
	}
	return out
}

func rebuildRoute(a *model.Assignment, clusters map[int]model.Cluster, warehouse model.Coordinate) {
	rebuildRouteFromPackages(a, setPackages(a.ClusterIDs, clusters), warehouse)
}

func rebuildRouteFromPackages(a *model.Assignment, pkgs []model.Package, warehouse model.Coordinate) {
	stops := cluster.OrderStops(pkgs, warehouse)
	dist := cluster.RouteDistanceKm(stops, warehouse)
	a.Route = model.Route{
		Stops:            stops,
		DistanceKm:       dist,
		EstimatedMinutes: costmatrix.EstimatedMinutes(len(pkgs), len(stops), dist),
	}
}
