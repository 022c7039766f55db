// Package assign solves the rectangular minimum-cost assignment between
// drivers and clusters. The matrix is padded to square with zero-cost
// dummies so every driver takes at most one cluster per round and every
// cluster goes to at most one driver.
package assign

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fairfleet/engine/core/cluster"
	"github.com/fairfleet/engine/core/costmatrix"
	"github.com/fairfleet/engine/core/model"
)

// ErrUnsolvable indicates every assignment covering all clusters uses at
// least one infeasible cell. The caller may re-cluster with a smaller
// target size and retry.
var ErrUnsolvable = errors.New("no feasible assignment covers all clusters")

// bigCost stands in for the +Inf sentinel inside the solver so potential
// arithmetic stays finite. Any matching touching such a cell is strictly
// worse than any fully feasible one.
const bigCost = 1e12

// lapSolve points to the function used to solve the square LAP. It can be
// overridden in tests to simulate solver failures.
var lapSolve = hungarian

// Solver assigns clusters to drivers. When clusters outnumber drivers it
// runs additional rounds over the leftover clusters with reduced driver
// capacity, so one driver may end up carrying several clusters.
type Solver struct {
	Matrix costmatrix.Builder
}

// Solve returns one assignment per driver that received at least one
// cluster, with the realized workload summed over the clusters received.
func (s Solver) Solve(drivers []model.Driver, clusters []model.Cluster, m *costmatrix.Matrix, warehouse model.Coordinate) ([]model.Assignment, error) {
	if len(drivers) == 0 {
		return nil, ErrUnsolvable
	}

	type load struct {
		clusters []int // indexes into clusters
		workload float64
	}
	loads := make([]load, len(drivers))
	working := append([]model.Driver(nil), drivers...)

	remaining := make([]int, len(clusters))
	for j := range clusters {
		remaining[j] = j
	}

	for len(remaining) > 0 {
		perm := lapSolve(padded(m, len(working), len(remaining)))

		assignedThisRound := 0
		var leftover []int
		taken := make([]bool, len(remaining))
		for i := range working {
			j := perm[i]
			if j >= len(remaining) {
				continue // dummy column: driver idles this round
			}
			if !m.Feasible[i][j] {
				// The optimal cover needed an infeasible cell, so no
				// feasible cover of all clusters exists at this sizing.
				return nil, ErrUnsolvable
			}
			ci := remaining[j]
			loads[i].clusters = append(loads[i].clusters, ci)
			loads[i].workload += m.At(i, j)
			working[i].CapacityKg -= clusters[ci].TotalWeightKg
			taken[j] = true
			assignedThisRound++
		}
		for j, idx := range remaining {
			if !taken[j] {
				leftover = append(leftover, idx)
			}
		}
		if assignedThisRound == 0 {
			return nil, ErrUnsolvable
		}
		remaining = leftover
		if len(remaining) > 0 {
			left := make([]model.Cluster, len(remaining))
			for j, idx := range remaining {
				left[j] = clusters[idx]
			}
			m = s.Matrix.Build(working, left, warehouse)
		}
	}

	var out []model.Assignment
	for i, l := range loads {
		if len(l.clusters) == 0 {
			continue
		}
		var pkgs []model.Package
		ids := make([]int, 0, len(l.clusters))
		for _, ci := range l.clusters {
			pkgs = append(pkgs, clusters[ci].Packages...)
			ids = append(ids, clusters[ci].ID)
		}
		stops := cluster.OrderStops(pkgs, warehouse)
		dist := cluster.RouteDistanceKm(stops, warehouse)
		out = append(out, model.Assignment{
			DriverID:   drivers[i].ID,
			ClusterIDs: ids,
			Workload:   l.workload,
			Route: model.Route{
				Stops:            stops,
				DistanceKm:       dist,
				EstimatedMinutes: costmatrix.EstimatedMinutes(len(pkgs), len(stops), dist),
			},
		})
	}
	return out, nil
}

// padded builds the square cost matrix for one round, with dummy rows or
// columns of cost 0 and infeasible cells replaced by the big sentinel.
func padded(m *costmatrix.Matrix, nd, nc int) *mat.Dense {
	n := nd
	if nc > n {
		n = nc
	}
	sq := mat.NewDense(n, n, nil)
	for i := 0; i < nd; i++ {
		for j := 0; j < nc; j++ {
			c := m.At(i, j)
			if math.IsInf(c, 1) || !m.Feasible[i][j] {
				c = bigCost
			}
			sq.Set(i, j, c)
		}
	}
	return sq
}

// hungarian solves the square minimum-cost assignment problem with the
// shortest-augmenting-path formulation (Jonker-Volgenant style potentials),
// O(n^3). Returns the column matched to each row.
func hungarian(cost *mat.Dense) []int {
	n, _ := cost.Dims()
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // row matched to column j, 0 = unmatched
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost.At(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			result[p[j]-1] = j - 1
		}
	}
	return result
}
