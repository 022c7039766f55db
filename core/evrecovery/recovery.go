// Package evrecovery is the post-acceptance pass that walks each electric
// driver's route leg by leg and inserts charging stops where the remaining
// range would otherwise be exhausted. It never changes which driver owns
// which cluster; it only augments routes and re-scores workload.
package evrecovery

import (
	"math"

	"github.com/fairfleet/engine/core/costmatrix"
	"github.com/fairfleet/engine/core/logger"
	"github.com/fairfleet/engine/core/model"
)

// Outcome reports what the pass did to one electric driver's route.
type Outcome struct {
	DriverID         string
	StationsInserted int
	Violation        bool
}

// Recovery augments EV routes with charging waypoints.
type Recovery struct {
	Weights  costmatrix.Weights
	EV       costmatrix.EVParams
	Stations []model.ChargingStation
	Log      logger.Logger
}

// New returns a Recovery pass over the given charging stations.
func New(w costmatrix.Weights, ev costmatrix.EVParams, stations []model.ChargingStation, log logger.Logger) Recovery {
	return Recovery{Weights: w, EV: ev, Stations: stations, Log: log}
}

// Recover processes every assignment and returns the augmented list plus
// one outcome per electric driver whose route needed attention. The input
// slice is not mutated.
func (r Recovery) Recover(assignments []model.Assignment, drivers []model.Driver, warehouse model.Coordinate) ([]model.Assignment, []Outcome) {
	byID := make(map[string]model.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}

	out := make([]model.Assignment, len(assignments))
	var outcomes []Outcome
	for i, a := range assignments {
		out[i] = a.Clone()
		d, ok := byID[a.DriverID]
		if !ok || !d.Electric() {
			continue
		}
		effRange := r.EV.EffectiveRangeKm(d.RangeKm)
		if out[i].Route.DistanceKm <= effRange {
			continue
		}
		oc := r.recoverRoute(&out[i], effRange, warehouse)
		outcomes = append(outcomes, oc)
	}
	return out, outcomes
}

// recoverRoute simulates the route leg by leg. When a leg would exhaust
// the remaining range, the nearest station reachable from the current
// position is inserted and range resets. A leg that stays unreachable
// even from a fresh charge marks the route as a range violation.
func (r Recovery) recoverRoute(a *model.Assignment, effRange float64, warehouse model.Coordinate) Outcome {
	oc := Outcome{DriverID: a.DriverID}
	oldMinutes := a.Route.EstimatedMinutes

	current := warehouse
	remaining := effRange
	total := 0.0
	var waypoints []model.Waypoint

	// Delivery legs, then the return leg to the warehouse.
	points := make([]model.Coordinate, 0, len(a.Route.Stops)+1)
	for _, s := range a.Route.Stops {
		points = append(points, s.Location)
	}
	points = append(points, warehouse)

	for idx, next := range points {
		leg := current.DistanceKm(next)
		if leg > remaining {
			st, dist, found := r.nearestStation(current, remaining)
			if !found {
				oc.Violation = true
				a.RangeViolation = true
				if r.Log != nil {
					r.Log.Warnf("driver %s: no charging station reachable with %.1fkm left before stop %d", a.DriverID, remaining, idx)
				}
				break
			}
			waypoints = append(waypoints, model.Waypoint{
				StationID: st.ID,
				Location:  st.Location,
				AfterStop: idx - 1,
			})
			oc.StationsInserted++
			total += dist
			current = st.Location
			remaining = effRange
			leg = current.DistanceKm(next)
			if leg > remaining {
				oc.Violation = true
				a.RangeViolation = true
				if r.Log != nil {
					r.Log.Warnf("driver %s: stop %d unreachable even after charging", a.DriverID, idx)
				}
				break
			}
		}
		total += leg
		remaining -= leg
		current = next
	}

	if oc.Violation {
		// Keep the original route; the caller decides remediation.
		return oc
	}

	a.Route.Waypoints = waypoints
	a.Route.DistanceKm = total
	a.Route.EstimatedMinutes = costmatrix.EstimatedMinutes(len(a.Route.Stops), len(a.Route.Stops), total) +
		r.EV.ChargingTimeMinutes*float64(oc.StationsInserted)
	// Only the time component of the workload changes.
	a.Workload += r.Weights.D * (a.Route.EstimatedMinutes - oldMinutes)
	return oc
}

// nearestStation returns the closest station within reach, if any.
func (r Recovery) nearestStation(from model.Coordinate, maxKm float64) (model.ChargingStation, float64, bool) {
	best := model.ChargingStation{}
	bestDist := math.Inf(1)
	for _, st := range r.Stations {
		if d := from.DistanceKm(st.Location); d <= maxKm && d < bestDist {
			best = st
			bestDist = d
		}
	}
	if math.IsInf(bestDist, 1) {
		return model.ChargingStation{}, 0, false
	}
	return best, bestDist, true
}
