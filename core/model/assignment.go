package model

// Stop is one delivery halt on a route.
type Stop struct {
	PackageID string     `json:"package_id"`
	Location  Coordinate `json:"location"`
}

// Waypoint is a non-delivery halt inserted into a route, currently only
// charging stops produced by EV range recovery.
type Waypoint struct {
	StationID string     `json:"station_id"`
	Location  Coordinate `json:"location"`
	// AfterStop is the index of the stop the waypoint follows; -1 places it
	// before the first stop.
	AfterStop int `json:"after_stop"`
}

// Route is the ordered stop sequence a driver follows, warehouse to
// warehouse.
type Route struct {
	Stops            []Stop     `json:"stops"`
	Waypoints        []Waypoint `json:"waypoints,omitempty"`
	DistanceKm       float64    `json:"distance_km"`
	EstimatedMinutes float64    `json:"estimated_minutes"`
}

// Assignment pairs one driver with the clusters they carry for the day.
// A finalized run holds at most one assignment per driver and maps each
// cluster to at most one driver.
type Assignment struct {
	ID             string  `json:"id"`
	DriverID       string  `json:"driver_id"`
	ClusterIDs     []int   `json:"cluster_ids"`
	Workload       float64 `json:"workload"`
	Route          Route   `json:"route"`
	FairnessScore  float64 `json:"fairness_score"`
	RangeViolation bool    `json:"range_violation,omitempty"`
}

// Clone returns a deep copy so appeal proposals never alias the frozen run.
func (a Assignment) Clone() Assignment {
	cp := a
	cp.ClusterIDs = append([]int(nil), a.ClusterIDs...)
	cp.Route.Stops = append([]Stop(nil), a.Route.Stops...)
	cp.Route.Waypoints = append([]Waypoint(nil), a.Route.Waypoints...)
	return cp
}
