package model

// Cluster is a geographically grouped subset of packages delivered as one
// route. Built by the cluster builder and never mutated afterwards; the
// reoptimization loop rebuilds clusters instead of editing them in place.
type Cluster struct {
	ID            int        `json:"id"`
	Packages      []Package  `json:"packages"`
	Centroid      Coordinate `json:"centroid"`
	TotalWeightKg float64    `json:"total_weight_kg"`
	Stops         int        `json:"stops"`
	Difficulty    float64    `json:"difficulty"`
}

// UrgentCount returns the number of HIGH and EXPRESS packages.
func (c Cluster) UrgentCount() int {
	n := 0
	for _, p := range c.Packages {
		if p.Priority.Urgent() {
			n++
		}
	}
	return n
}

// AvgFragility returns the mean fragility level, 1 for an empty cluster.
func (c Cluster) AvgFragility() float64 {
	if len(c.Packages) == 0 {
		return 1
	}
	sum := 0.0
	for _, p := range c.Packages {
		sum += float64(p.Fragility)
	}
	return sum / float64(len(c.Packages))
}

// ChargingStation is a known charging point EV routes may be split on.
type ChargingStation struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}
