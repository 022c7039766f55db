// Package costmatrix scores every driver/cluster pairing with a workload
// estimate and a feasibility flag. The matrix is dense, deterministic and
// holds no hidden state; infeasible cells carry a +Inf sentinel.
package costmatrix

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/fairfleet/engine/core/cluster"
	"github.com/fairfleet/engine/core/model"
)

// Route time estimation constants: fixed handling time per package, per
// stop overhead and an urban average driving speed.
const (
	baseRouteMinutes  = 30.0
	minutesPerPackage = 5.0
	minutesPerStop    = 3.0
	avgSpeedKmh       = 30.0
)

// ClusterRoute is the driver-independent routing summary for one cluster.
type ClusterRoute struct {
	Stops            []model.Stop
	DistanceKm       float64
	EstimatedMinutes float64
}

// Matrix is the |drivers| x |clusters| cost matrix plus its feasibility
// mask. Rows are drivers, columns are clusters, in input order.
type Matrix struct {
	Costs    *mat.Dense
	Feasible [][]bool
	Reasons  [][]string
	Routes   []ClusterRoute
}

// At returns the workload score for the (driver, cluster) cell.
func (m *Matrix) At(driver, cluster int) float64 { return m.Costs.At(driver, cluster) }

// Builder computes cost matrices from configured weights and EV params.
type Builder struct {
	Weights Weights
	EV      EVParams
}

// NewBuilder returns a Builder with the given weights, falling back to
// default EV parameters when zero-valued.
func NewBuilder(w Weights, ev EVParams) Builder {
	if ev == (EVParams{}) {
		ev = DefaultEVParams()
	}
	return Builder{Weights: w, EV: ev}
}

// EstimatedMinutes derives route duration from stop count and distance,
// not wall-clock measurement.
func EstimatedMinutes(numPackages, numStops int, distanceKm float64) float64 {
	t := baseRouteMinutes + minutesPerPackage*float64(numPackages) + minutesPerStop*float64(numStops)
	if distanceKm > 0 {
		t += distanceKm / avgSpeedKmh * 60
	}
	return math.Round(t)
}

// Workload applies the effort formula to a cluster with a known duration.
func (w Weights) Workload(c model.Cluster, estimatedMinutes float64) float64 {
	return w.A*float64(len(c.Packages)) +
		w.B*c.TotalWeightKg +
		w.C*c.Difficulty +
		w.D*estimatedMinutes
}

// Feasible reports whether a driver can carry a cluster: capacity always,
// plus the straight-line warehouse round-trip pre-filter for electric
// drivers. Finer-grained range checking happens in EV range recovery.
func (b Builder) Feasible(d model.Driver, c model.Cluster, warehouse model.Coordinate) (bool, string) {
	if c.TotalWeightKg > d.CapacityKg {
		return false, fmt.Sprintf("cluster weight %.1fkg exceeds capacity %.1fkg", c.TotalWeightKg, d.CapacityKg)
	}
	if d.Electric() {
		roundTrip := 2 * warehouse.DistanceKm(c.Centroid)
		if roundTrip > b.EV.EffectiveRangeKm(d.RangeKm) {
			return false, fmt.Sprintf("round trip %.1fkm exceeds EV range %.1fkm", roundTrip, d.RangeKm)
		}
	}
	return true, ""
}

// Build computes the dense cost matrix for all driver/cluster pairs.
// Per-cell computations are independent and run concurrently per driver
// row; the matrix is fully merged before being returned.
func (b Builder) Build(drivers []model.Driver, clusters []model.Cluster, warehouse model.Coordinate) *Matrix {
	routes := make([]ClusterRoute, len(clusters))
	for j, c := range clusters {
		stops := cluster.OrderStops(c.Packages, warehouse)
		dist := cluster.RouteDistanceKm(stops, warehouse)
		routes[j] = ClusterRoute{
			Stops:            stops,
			DistanceKm:       dist,
			EstimatedMinutes: EstimatedMinutes(len(c.Packages), c.Stops, dist),
		}
	}

	m := &Matrix{
		Costs:    mat.NewDense(len(drivers), len(clusters), nil),
		Feasible: make([][]bool, len(drivers)),
		Reasons:  make([][]string, len(drivers)),
		Routes:   routes,
	}

	var wg sync.WaitGroup
	for i := range drivers {
		m.Feasible[i] = make([]bool, len(clusters))
		m.Reasons[i] = make([]string, len(clusters))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range clusters {
				score, ok, reason := b.cell(drivers[i], clusters[j], routes[j], warehouse)
				m.Costs.Set(i, j, score)
				m.Feasible[i][j] = ok
				m.Reasons[i][j] = reason
			}
		}(i)
	}
	wg.Wait()
	return m
}

// Score computes a single driver/cluster cell outside a full matrix
// build, used by the appeal resolver to evaluate local moves.
func (b Builder) Score(d model.Driver, c model.Cluster, warehouse model.Coordinate) (float64, bool) {
	stops := cluster.OrderStops(c.Packages, warehouse)
	dist := cluster.RouteDistanceKm(stops, warehouse)
	route := ClusterRoute{
		Stops:            stops,
		DistanceKm:       dist,
		EstimatedMinutes: EstimatedMinutes(len(c.Packages), c.Stops, dist),
	}
	score, ok, _ := b.cell(d, c, route, warehouse)
	return score, ok
}

func (b Builder) cell(d model.Driver, c model.Cluster, route ClusterRoute, warehouse model.Coordinate) (float64, bool, string) {
	if ok, reason := b.Feasible(d, c, warehouse); !ok {
		return math.Inf(1), false, reason
	}
	score := b.Weights.Workload(c, route.EstimatedMinutes)
	if d.Electric() {
		score += b.EV.ChargingOverhead(route.DistanceKm, d.RangeKm)
	}
	return score, true, ""
}
