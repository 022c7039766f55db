package cluster

import (
	"math"

	"github.com/fairfleet/engine/core/model"
)

// OrderStops orders packages with the nearest-neighbor heuristic starting
// from the given origin, a cheap TSP approximation for route sequencing.
func OrderStops(packages []model.Package, origin model.Coordinate) []model.Stop {
	remaining := append([]model.Package(nil), packages...)
	stops := make([]model.Stop, 0, len(remaining))
	current := origin
	for len(remaining) > 0 {
		nearest, bestDist := 0, math.Inf(1)
		for i, p := range remaining {
			if d := current.DistanceKm(p.Location); d < bestDist {
				nearest, bestDist = i, d
			}
		}
		p := remaining[nearest]
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
		stops = append(stops, model.Stop{PackageID: p.ID, Location: p.Location})
		current = p.Location
	}
	return stops
}

// RouteDistanceKm sums the leg distances warehouse -> stops -> warehouse.
func RouteDistanceKm(stops []model.Stop, warehouse model.Coordinate) float64 {
	total := 0.0
	current := warehouse
	for _, s := range stops {
		total += current.DistanceKm(s.Location)
		current = s.Location
	}
	total += current.DistanceKm(warehouse)
	return total
}
